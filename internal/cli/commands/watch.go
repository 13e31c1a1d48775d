package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// watchFile compiles file now and again after every change until
// interrupted. Compile errors are reported and do not stop the watch.
func watchFile(ctx context.Context, cc *CommandContext, file string, opts *CompileOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	compile := func() {
		if err := compileFile(ctx, cc, file, opts); err != nil {
			cc.Renderer.Error(err.Error())
		}
		cc.Renderer.Muted(fmt.Sprintf("watching %s (ctrl-c to stop)", file))
	}
	compile()
	return watchLoop(ctx, file, watchDebounce, cc.Logger, compile)
}

// watchLoop calls onChange, on the calling goroutine, once the file has
// been quiet for debounce after a write. It returns when ctx is done.
func watchLoop(ctx context.Context, file string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	// Editors often replace the file on save, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", file, err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, _ := filepath.Abs(event.Name); name != abs {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			logger.Debug("file changed, recompiling", slog.String("file", file))
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}
