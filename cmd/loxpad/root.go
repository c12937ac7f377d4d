package main

import (
	"context"
	"io"
	"os"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is set at build time.
var Version = "dev"

type configKey struct{}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "loxpad [file]",
		Short: "Playground and toolchain for the Lox language",
		Long: `loxpad - Parse, compile and run Lox programs.

Run a file directly, inspect its syntax tree or bytecode, start an
interactive REPL, or serve the browser playground. Programs run in the
built-in Lox VM or in an external WebAssembly module (--backend wasm).`,
		Args:    cobra.MaximumNArgs(1),
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, configKey{}, cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}
			return nil
		},
		RunE:         runRun,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./loxpad.yaml)")
	rootCmd.PersistentFlags().StringP("backend", "b", "", "Backend: lox or wasm")
	rootCmd.PersistentFlags().String("wasm-module", "", "WASI module implementing the backend protocol")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")

	_ = rootCmd.RegisterFlagCompletionFunc("backend", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.BackendLox, config.BackendWasm}, cobra.ShellCompDirectiveNoFileComp
	})

	// The root command runs files like "run".
	addRunFlags(rootCmd)

	rootCmd.AddCommand(
		newRunCmd(),
		newReplCmd(),
		newServeCmd(),
		newTestCmd(),
		newWatchCmd(),
		newLSPCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// getConfig returns the config loaded for the running command.
func getConfig(ctx context.Context) *config.Config {
	if ctx != nil {
		if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
			return c
		}
	}
	return config.Default()
}

// useColor reports whether output written to w should carry ANSI colour.
func useColor(cfg *config.Config, w io.Writer) bool {
	switch cfg.Color {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
