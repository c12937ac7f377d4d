package main

import (
	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/internal/lsp"
	"github.com/caffeineduck/loxpad/language/lox"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

func newLSPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Run the Lox language server on stdio",
		Long: `Start a Language Server Protocol server on stdin/stdout.

Editors get compile diagnostics as you type, keyword and builtin
completion, and an outline of top-level functions and variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			// stdout carries the protocol; commonlog writes to stderr.
			commonlog.Configure(verbosity, nil)

			ctx := cmd.Context()
			server := lsp.New(
				lsp.WithNatives(lox.New().Natives()),
				lsp.WithLogger(config.Logger(ctx)),
				lsp.WithVersion(Version),
			)
			return server.RunStdio()
		},
	}
	cmd.Flags().CountP("verbose", "v", "Protocol log verbosity (repeat for more)")
	return cmd
}
