package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/chainkit/internal/chain"
	"github.com/soyeahso/chainkit/internal/hooks"
	"github.com/soyeahso/chainkit/internal/llm"
	"github.com/soyeahso/chainkit/internal/tools"
	"github.com/spf13/cobra"
)

type runFlags struct {
	model         string
	system        string
	context       []string
	tools         []string
	maxIterations int
	temperature   float64
	maxTokens     int
	stream        bool
	parallel      bool
	quiet         bool
	save          bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Send a prompt and run tools until the model answers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runPrompt(ctx, cmd, f, strings.Join(args, " "))
		},
	}

	addChainFlags(cmd, &f)
	cmd.Flags().BoolVar(&f.stream, "stream", false, "stream a single reply without tools")
	cmd.Flags().BoolVar(&f.save, "save", false, "save the transcript under the transcripts directory")

	return cmd
}

// addChainFlags registers the flags buildChain reads.
func addChainFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.model, "model", "", "model as provider:name (default from config)")
	cmd.Flags().StringVar(&f.system, "system", "", "system message placed before the conversation")
	cmd.Flags().StringArrayVar(&f.context, "context", nil, "application context entry key=value (repeatable)")
	cmd.Flags().StringSliceVar(&f.tools, "tools", nil, "builtin tools to offer, or \"all\" (default from config)")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "dispatch budget for the tool loop (default from config)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "run the tool calls of one reply concurrently")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print tool progress")
}

// buildChain assembles the starting chain from config and flags and returns it
// with the dispatch budget to run under.
func buildChain(cmd *cobra.Command, f runFlags) (chain.Chain, int, error) {
	flags := cmd.Flags()

	model := f.model
	if model == "" {
		model = cfg.Model
	}
	maxIterations := f.maxIterations
	if maxIterations == 0 {
		maxIterations = cfg.MaxIterations
	}

	call := callOptions(cfg)
	if flags.Changed("temperature") {
		call.Temperature = &f.temperature
	}
	if flags.Changed("max-tokens") {
		call.MaxTokens = f.maxTokens
	}

	appCtx := maps.Clone(cfg.Context)
	pairs, err := parseContextPairs(f.context)
	if err != nil {
		return chain.Chain{}, 0, err
	}
	if appCtx == nil {
		appCtx = map[string]any{}
	}
	maps.Copy(appCtx, pairs)

	toolNames := cfg.Tools.Enabled
	if flags.Changed("tools") {
		toolNames = f.tools
	}
	if f.stream {
		toolNames = nil
	}
	selected, err := tools.Select(toolNames)
	if err != nil {
		return chain.Chain{}, 0, err
	}

	mgr := hooks.NewManager(log)
	if !f.quiet {
		registerProgressHooks(mgr, cmd.ErrOrStderr())
	}

	c, err := chain.New(newRegistry(cfg, log), model, call,
		chain.WithObserver(chain.Observers(chain.LogObserver(log), mgr)),
		chain.WithExecutor(newExecutor(cfg, f.parallel)),
	)
	if err != nil {
		return chain.Chain{}, 0, err
	}
	if f.system != "" {
		c = c.AddSystemMessage(f.system)
	}
	return c.AddTools(selected...).SetContext(appCtx), maxIterations, nil
}

func runPrompt(ctx context.Context, cmd *cobra.Command, f runFlags, prompt string) error {
	explicitTools := cmd.Flags().Changed("tools") && len(f.tools) > 0
	if !cmd.Flags().Changed("stream") {
		f.stream = cfg.Call.Stream && !explicitTools
	}
	if f.stream && explicitTools {
		return errors.New("--stream cannot be combined with --tools")
	}

	c, maxIterations, err := buildChain(cmd, f)
	if err != nil {
		return err
	}
	c = c.AddUserMessage(prompt)

	out := cmd.OutOrStdout()
	var resp *llm.CompletionResponse
	if f.stream {
		var events <-chan llm.StreamEvent
		c, events, err = c.Stream(ctx)
		if err != nil {
			return err
		}
		resp, err = llm.Collect(printDeltas(out, events))
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		c = c.AppendResponse(resp)
	} else {
		c, resp, err = c.RunUntilDone(ctx, maxIterations)
		if errors.Is(err, chain.ErrBudgetExhausted) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\n--- partial transcript ---\n%s\n", c.ExtractText())
		}
		if err != nil {
			if f.save {
				if _, serr := saveTranscript(c, time.Now()); serr != nil {
					log.Warn().Err(serr).Msg("failed to save transcript")
				}
			}
			return err
		}
		fmt.Fprintln(out, resp.Text())
	}

	printUsage(cmd.ErrOrStderr(), resp)
	if f.save {
		path, err := saveTranscript(c, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "transcript saved to %s\n", path)
	}
	return nil
}

func printUsage(w io.Writer, resp *llm.CompletionResponse) {
	if resp.Model != "" {
		fmt.Fprintf(w, "\n[model=%s tokens=%d+%d]\n",
			resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
}

// registerProgressHooks prints one line per tool call to w.
func registerProgressHooks(mgr *hooks.Manager, w io.Writer) {
	mgr.On(hooks.EventToolFinish, "progress", func(_ context.Context, p hooks.Payload) error {
		_, err := fmt.Fprintf(w, "  ⚙ %v [%v] %vms\n", p.Data["tool"], p.Data["outcome"], p.Data["durationMs"])
		return err
	})
}

// printDeltas copies events through, writing each text delta to w as it arrives.
func printDeltas(w io.Writer, events <-chan llm.StreamEvent) <-chan llm.StreamEvent {
	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)
		for evt := range events {
			if evt.Type == llm.EventDelta {
				fmt.Fprint(w, evt.Content)
			}
			out <- evt
		}
	}()
	return out
}

// parseContextPairs turns key=value entries into a context map. Values are typed
// the same way as config set values.
func parseContextPairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid context entry %q (want key=value)", p)
		}
		out[k] = parseValue(v)
	}
	return out, nil
}

// saveTranscript writes the chain transcript to a timestamped file under the
// transcripts directory.
func saveTranscript(c chain.Chain, at time.Time) (string, error) {
	if err := paths.EnsureDirs(); err != nil {
		return "", err
	}
	path := filepath.Join(paths.Transcripts, "run-"+at.UTC().Format("20060102-150405")+".txt")
	if err := os.WriteFile(path, []byte(c.ExtractText()+"\n"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}
