package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/internal/snippets"
	"github.com/caffeineduck/loxpad/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the browser playground",
		Long: `Start the HTTP server for the browser playground and its JSON API.

Pages:
  GET    /                       Playground
  GET    /s/{id}                 Playground pre-filled with a shared snippet

JSON API:
  POST   /api/{mode}             Run source in a fresh session (stateless)
  POST   /api/sessions           Create session, returns {"session_id":"..."}
  POST   /api/sessions/{id}/{mode}  Run source in a session
  DELETE /api/sessions/{id}      Close session
  POST   /api/share              Save a snippet, returns {"id":"...","url":"..."}
  GET    /api/share/{id}         Fetch a snippet
  GET    /health                 Health check

Modes are execute (alias run), parse (alias ast) and bytecode.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringP("addr", "a", "", "Listen address (default from config: :8080)")
	cmd.Flags().String("database", "", "Snippet database path (default from config: loxpad.db)")
	cmd.Flags().Bool("no-share", false, "Disable snippet sharing")
	cmd.Flags().Duration("session-ttl", 0, "Close playground sessions idle this long (default from config: 30m)")
	addSessionFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := getConfig(ctx)
	logger := config.Logger(ctx)

	backends, err := serveBackends(cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	var store *snippets.Store
	if noShare, _ := cmd.Flags().GetBool("no-share"); !noShare {
		store, err = snippets.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("open snippet database: %w", err)
		}
		defer store.Close()
	}

	server, err := web.NewServer(web.Config{
		Addr:           cfg.Addr,
		Backend:        backends.New,
		BackendName:    cfg.Backend,
		SessionOptions: backends.sessionOptions(ctx),
		Snippets:       store,
		SessionSecret:  cfg.SessionSecret,
		SessionTTL:     cfg.SessionTTL,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// serveBackends creates the backends behind the playground. Diagnostics are
// shown in the browser as literal text, so they must not carry ANSI codes;
// programs can still colour their own output with color().
func serveBackends(cfg *config.Config) (*backendSet, error) {
	return newBackendSet(cfg, false, "")
}
