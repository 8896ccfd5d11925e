package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"omegagen/internal/logging"
)

// watchCmd re-runs codegen whenever a request file changes
var watchCmd = &cobra.Command{
	Use:   "watch [request.yaml]",
	Short: "Re-run codegen each time the request file changes",
	Long: `Runs codegen once, then again after every change to the request file until
interrupted. Each run uses a fresh pipeline. Rapid successive writes are
coalesced using the watch.debounce interval from the config.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	w := cmd.OutOrStdout()
	errw := cmd.ErrOrStderr()
	return watchRequest(ctx, args[0], cfg.GetWatchDebounce(), func(out string, err error) {
		fmt.Fprintf(w, "== %s ==\n", time.Now().Format(time.TimeOnly))
		if err != nil {
			fmt.Fprintf(errw, "codegen failed: %v\n", err)
			return
		}
		writeOutput(w, out)
	})
}

// watchRequest calls emit with the codegen result for path once at start and
// after every debounced change, until ctx is done. The parent directory is
// watched so editors that replace the file by rename are followed.
func watchRequest(ctx context.Context, path string, debounce time.Duration, emit func(string, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logging.ScriptDebug("Watching %s (debounce %s)", abs, debounce)

	emit(codegenFile(ctx, abs))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			logging.Script("Request changed, re-running %s", abs)
			emit(codegenFile(ctx, abs))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryScript).Warn("Watcher error: %v", err)
		}
	}
}
