package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/language/lox"
	"github.com/caffeineduck/loxpad/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

const (
	prompt         = ">>> "
	continuePrompt = "... "
)

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive REPL with persistent globals",
		Long: `Start an interactive Lox REPL (Read-Eval-Print Loop) session.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)
  - :parse <code> and :bytecode <code> to inspect code without running it

Globals persist between lines. Type 'exit' or 'quit' to end the session,
or press Ctrl+D.`,
		Args: cobra.NoArgs,
		RunE: runRepl,
	}
	cmd.Flags().String("history", "", "History file path (default: ~/.loxpad_history)")
	return cmd
}

func runRepl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := getConfig(ctx)
	if cfg.Backend != config.BackendLox {
		return fmt.Errorf("repl requires the %s backend, got %q", config.BackendLox, cfg.Backend)
	}

	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".loxpad_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            cmd.OutOrStdout(),
		Stderr:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	color := useColor(cfg, cmd.OutOrStdout())
	r := newRepl(cfg, color, cmd.OutOrStdout(), cmd.ErrOrStderr())
	defer r.close()

	r.banner()
	return r.loop(ctx, rl)
}

// lineReader is the part of readline used by the loop.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(string)
}

type repl struct {
	cfg     *config.Config
	color   bool
	out     io.Writer
	errOut  io.Writer
	backend *lox.Backend
	// inspect runs :parse and :bytecode without touching REPL globals.
	inspect *session.Session
}

func newRepl(cfg *config.Config, color bool, out, errOut io.Writer) *repl {
	opts := []lox.Option{
		lox.WithColor(color),
		lox.WithMaxOutput(cfg.MaxOutput),
		lox.WithFile("repl"),
	}
	return &repl{
		cfg:     cfg,
		color:   color,
		out:     out,
		errOut:  errOut,
		backend: lox.New(opts...),
		inspect: session.New(lox.New(opts...)),
	}
}

func (r *repl) banner() {
	renderer := lipgloss.NewRenderer(r.errOut)
	if !r.color {
		renderer.SetColorProfile(termenv.Ascii)
	}
	title := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("13")).Render("loxpad " + Version)
	hint := renderer.NewStyle().Faint(true).Render("type 'exit' to quit, Ctrl+D to exit")
	fmt.Fprintf(r.errOut, "%s %s\n", title, hint)
}

func (r *repl) loop(ctx context.Context, rl lineReader) error {
	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(prompt)
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt(continuePrompt)
			continue
		}
		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(prompt)
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, ":parse "):
			r.show(r.inspect.Submit(ctx, strings.TrimPrefix(line, ":parse "), session.ModeParse))
		case strings.HasPrefix(line, ":bytecode "):
			r.show(r.inspect.Submit(ctx, strings.TrimPrefix(line, ":bytecode "), session.ModeBytecode))
		default:
			r.eval(ctx, line)
		}
	}
}

func (r *repl) eval(ctx context.Context, line string) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	output, err := r.backend.Eval(ctx, line)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %v", session.ErrTimeout, r.cfg.Timeout)
	}
	r.show(session.Result{Output: output, Error: err})
}

func (r *repl) show(result session.Result) {
	if result.Output != "" {
		writeOutput(r.out, result.Output, r.color)
		if !strings.HasSuffix(result.Output, "\n") {
			fmt.Fprintln(r.out)
		}
	}
	if result.Error != nil {
		fmt.Fprintf(r.errOut, "Error: %v\n", result.Error)
	}
}

func (r *repl) close() {
	r.backend.Close()
	r.inspect.Close()
}
