package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caffeineduck/loxpad/render"
	"github.com/caffeineduck/loxpad/session"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run, parse or disassemble a Lox program",
		Long: `Run a Lox program, or show its syntax tree or bytecode.

Code can be provided via:
  - File argument: loxpad run hello.lox
  - Inline flag: loxpad run -c 'print 1 + 2;'
  - Stdin: echo 'print 1 + 2;' | loxpad run

Modes:
  execute   compile and run the program (default)
  parse     print the syntax tree
  bytecode  print the compiled bytecode`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to run")
	cmd.Flags().StringP("mode", "m", "execute", "Mode: execute, parse, bytecode")
	addSessionFlags(cmd)

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, m := range session.Modes() {
			names = append(names, m.String())
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// addSessionFlags adds flags that override session limits from the config.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 0, "Execution timeout (default from config: 30s)")
	cmd.Flags().Int("max-output", 0, "Max output bytes (default from config: 1MiB)")
	cmd.Flags().Bool("partial-output", false, "Keep output printed before a runtime error")
}

// readSource returns the program text and a display name for it. It returns
// an empty name and no text when there is nothing to read.
func readSource(cmd *cobra.Command, args []string) (string, string, error) {
	code, _ := cmd.Flags().GetString("code")
	switch {
	case code != "":
		return code, "input", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), filepath.Base(args[0]), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		// No piped input
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", err
	}
	if len(data) == 0 {
		return "", "", nil
	}
	return string(data), "stdin", nil
}

func runRun(cmd *cobra.Command, args []string) error {
	source, name, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	if name == "" {
		return cmd.Help()
	}

	modeName, _ := cmd.Flags().GetString("mode")
	mode, err := session.ParseMode(modeName)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg := getConfig(ctx)
	color := useColor(cfg, cmd.OutOrStdout())

	backends, err := newBackendSet(cfg, color, name)
	if err != nil {
		return err
	}
	defer backends.Close()

	s, err := backends.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	result := s.Submit(ctx, source, mode)
	writeOutput(cmd.OutOrStdout(), result.Output, color)
	return result.Error
}

// writeOutput prints backend output, dropping ANSI styling when colour is
// off.
func writeOutput(w io.Writer, output string, color bool) {
	if !color {
		output = render.Strip(output)
	}
	fmt.Fprint(w, output)
}

// isGuestFailure reports whether err is the program's fault rather than
// loxpad's.
func isGuestFailure(err error) bool {
	return session.IsGuestError(err) || errors.Is(err, session.ErrTimeout)
}
