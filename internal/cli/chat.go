package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/soyeahso/chainkit/internal/chain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const chatHelp = `Commands:
  /help              show this help
  /history           print the conversation so far
  /tools             list the tools offered to the model
  /context key=value set an application context entry
  /reset             forget the conversation, keep system message and tools
  /exit              leave the chat`

func newChatCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold a multi-turn conversation with tool calling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}

			c, maxIterations, err := buildChain(cmd, f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var in lineReader
			if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
				in = newLinerReader(paths.History)
			} else {
				in = newScannerReader(cmd.InOrStdin())
			}
			defer in.Close()

			s := newChatSession(c, maxIterations, cmd.OutOrStdout(), cmd.ErrOrStderr())
			fmt.Fprintf(cmd.ErrOrStderr(), "chatting with %s; /help for commands\n", c.Model())
			return s.loop(ctx, in)
		},
	}

	addChainFlags(cmd, &f)
	return cmd
}

// lineReader yields one line of user input per call. io.EOF ends the session.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return &linerReader{line: line, historyFile: historyFile}
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *linerReader) Close() error {
	if err := paths.EnsureDirs(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// scannerReader reads piped input without prompting.
type scannerReader struct {
	scanner *bufio.Scanner
}

func newScannerReader(r io.Reader) *scannerReader {
	return &scannerReader{scanner: bufio.NewScanner(r)}
}

func (r *scannerReader) ReadLine(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scannerReader) Close() error { return nil }

// chatSession holds the conversation between turns. A failed turn leaves the
// conversation as it was before the turn.
type chatSession struct {
	initial chain.Chain
	chain   chain.Chain
	budget  int
	out     io.Writer
	errOut  io.Writer
}

func newChatSession(c chain.Chain, budget int, out, errOut io.Writer) *chatSession {
	return &chatSession{initial: c, chain: c, budget: budget, out: out, errOut: errOut}
}

func (s *chatSession) loop(ctx context.Context, in lineReader) error {
	for {
		line, err := in.ReadLine("you> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		more, err := s.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(s.errOut, "error: %v\n", err)
		}
		if !more {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handle processes one line of input. It reports false when the session should end.
func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if strings.HasPrefix(line, "/") {
		return s.command(line)
	}

	next, resp, err := s.chain.AddUserMessage(line).RunUntilDone(ctx, s.budget)
	if errors.Is(err, chain.ErrBudgetExhausted) {
		s.chain = next
		return true, fmt.Errorf("%w; the partial exchange is kept, /history shows it", err)
	}
	if err != nil {
		return true, err
	}

	s.chain = next
	fmt.Fprintln(s.out, resp.Text())
	return true, nil
}

func (s *chatSession) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return false, nil
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/history":
		fmt.Fprintln(s.out, s.chain.ExtractText())
	case "/tools":
		tools := s.chain.Tools()
		if len(tools) == 0 {
			fmt.Fprintln(s.out, "(no tools)")
		}
		for _, t := range tools {
			fmt.Fprintf(s.out, "  %-14s %s\n", t.Name, t.Description)
		}
	case "/context":
		pairs, err := parseContextPairs([]string{arg})
		if err != nil {
			return true, err
		}
		s.chain = s.chain.SetContext(pairs)
	case "/reset":
		s.chain = s.initial.SetContext(s.chain.Context())
		fmt.Fprintln(s.out, "conversation cleared")
	default:
		return true, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return true, nil
}
