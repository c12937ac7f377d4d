package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/session"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 100 * time.Millisecond

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run a Lox program whenever it changes",
		Long: `Run a Lox program, then run it again every time the file is saved.
Program errors are printed and watching continues. Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().StringP("mode", "m", "execute", "Mode: execute, parse, bytecode")
	cmd.Flags().Bool("clear", false, "Clear the screen before each run")
	addSessionFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modeName, _ := cmd.Flags().GetString("mode")
	mode, err := session.ParseMode(modeName)
	if err != nil {
		return err
	}
	clearScreen, _ := cmd.Flags().GetBool("clear")

	path := args[0]
	cfg := getConfig(ctx)
	logger := config.Logger(ctx)
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	color := useColor(cfg, out)

	backends, err := newBackendSet(cfg, color, filepath.Base(path))
	if err != nil {
		return err
	}
	defer backends.Close()

	s, err := backends.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	run := func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if clearScreen {
			fmt.Fprint(out, "\x1b[H\x1b[2J")
		}
		result := s.Submit(ctx, string(data), mode)
		writeOutput(out, result.Output, color)
		if result.Error != nil {
			if !isGuestFailure(result.Error) {
				return result.Error
			}
			writeOutput(errOut, strings.TrimRight(result.Error.Error(), "\n")+"\n", color)
		}
		fmt.Fprintf(errOut, "[%s %s in %v, waiting for changes]\n", mode, filepath.Base(path), result.Duration.Round(time.Microsecond))
		return nil
	}

	if err := run(); err != nil {
		return err
	}
	err = watchFile(ctx, path, watchDebounce, logger, run)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// watchFile calls onChange after path is written or recreated, once the
// file has been quiet for debounce. The directory is watched rather than
// the file so that editors replacing the file are seen. It returns when
// ctx is done or onChange fails.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Debug("watching", "path", abs)

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != abs {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			logger.Debug("change detected", "path", abs)
			if err := onChange(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
