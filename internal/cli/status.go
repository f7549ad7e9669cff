package cli

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/soyeahso/chainkit/internal/config"
	"github.com/soyeahso/chainkit/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show chainkit configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chainkit %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Fprintf(out, "Config:      %s\n", paths.Config)
			fmt.Fprintf(out, "Transcripts: %s\n", paths.Transcripts)
			fmt.Fprintln(out)

			if cfgErr != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", cfgErr)
				return nil
			}

			// Model and loop budget
			fmt.Fprintf(out, "Model:   %s (max iterations %d)\n", cfg.Model, cfg.MaxIterations)

			// Providers
			registry := newRegistry(cfg, log)
			fmt.Fprintf(out, "LLM:     %s\n", strings.Join(registry.List(), ", "))
			fmt.Fprintf(out, "Ollama:  %s (timeout %ds)\n", cfg.Providers.Ollama.BaseURL, cfg.Providers.Ollama.TimeoutSeconds)
			if slices.Contains(registry.List(), "anthropic") {
				base := cfg.Providers.Anthropic.BaseURL
				if base == "" {
					base = "default endpoint"
				}
				fmt.Fprintf(out, "Anthropic: %s (timeout %ds)\n", base, cfg.Providers.Anthropic.TimeoutSeconds)
			}
			if len(cfg.Aliases) > 0 {
				aliases := make([]string, 0, len(cfg.Aliases))
				for a, p := range cfg.Aliases {
					aliases = append(aliases, a+"→"+p)
				}
				sort.Strings(aliases)
				fmt.Fprintf(out, "Aliases: %s\n", strings.Join(aliases, ", "))
			}

			// Tools
			enabled := "(none)"
			if len(cfg.Tools.Enabled) > 0 {
				enabled = strings.Join(cfg.Tools.Enabled, ", ")
			}
			mode := "sequential"
			switch {
			case cfg.Tools.Parallel && cfg.Tools.MaxConcurrency > 0:
				mode = fmt.Sprintf("parallel, max %d", cfg.Tools.MaxConcurrency)
			case cfg.Tools.Parallel:
				mode = "parallel"
			}
			fmt.Fprintf(out, "Tools:   %s [%s]\n", enabled, mode)

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
