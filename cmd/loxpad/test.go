package main

import (
	"fmt"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/internal/golden"
	"github.com/spf13/cobra"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [path]",
		Short: "Check Lox programs against expected output",
		Long: `Run golden tests. Each program foo/bar.lox is compared against the
files in foo/bar/:

  token       token stream
  syntax      syntax tree
  diagnostic  compile errors
  bytecode    disassembly
  output      printed output and runtime error

The path is a .lox file or a directory of them (default: lox_tests).
Programs with a "// ignore" line are skipped. Use --bless to write the
current results as the new expectations.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTest,
	}
	cmd.Flags().Bool("bless", false, "Overwrite expectation files with actual results")
	cmd.Flags().Duration("timeout", 0, "Per-program timeout (default from config: 30s)")
	return cmd
}

func runTest(cmd *cobra.Command, args []string) error {
	path := "lox_tests"
	if len(args) > 0 {
		path = args[0]
	}
	bless, _ := cmd.Flags().GetBool("bless")

	ctx := cmd.Context()
	cfg := getConfig(ctx)
	logger := config.Logger(ctx)

	cases, err := golden.List(path)
	if err != nil {
		return err
	}
	logger.Debug("golden cases", "path", path, "count", len(cases))

	runner := &golden.Runner{Bless: bless, Timeout: cfg.Timeout}
	rep := golden.NewReporter(cmd.OutOrStdout(), useColor(cfg, cmd.OutOrStdout()))
	for _, c := range cases {
		res, err := runner.Run(ctx, c)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Path, err)
		}
		rep.Add(res)
	}
	rep.Summary()

	if n := rep.Failed(); n > 0 {
		return fmt.Errorf("%d of %d tests failed", n, len(cases))
	}
	return nil
}
