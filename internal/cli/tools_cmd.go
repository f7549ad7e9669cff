package cli

import (
	"encoding/json"
	"fmt"

	"github.com/soyeahso/chainkit/internal/tools"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect builtin tools",
	}

	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsInfoCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List builtin tools",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			enabled := make(map[string]bool, len(cfg.Tools.Enabled))
			for _, n := range cfg.Tools.Enabled {
				enabled[n] = true
			}
			for _, t := range tools.Builtins() {
				mark := ""
				if enabled[t.Name] || enabled["all"] {
					mark = " (enabled)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %s%s\n", t.Name, t.Description, mark)
			}
		},
	}
}

func newToolsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a tool's description and parameter schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := tools.Select(args)
			if err != nil {
				return err
			}
			if len(selected) != 1 {
				return fmt.Errorf("expected one tool, got %d", len(selected))
			}
			def := selected[0].Definition()

			schema, err := json.MarshalIndent(def.Parameters, "", "  ")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", def.Name)
			fmt.Fprintf(out, "Description: %s\n", def.Description)
			fmt.Fprintf(out, "Parameters:\n%s\n", schema)
			return nil
		},
	}
}
