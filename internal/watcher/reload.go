package watcher

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// ReloadFunc rebuilds whatever depends on the watched file.
type ReloadFunc func(ctx context.Context) error

// Run calls reload once per debounced batch from w until ctx is done or w
// stops. A failed reload is logged and the loop keeps going.
func Run(ctx context.Context, w *FileWatcher, reload ReloadFunc, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	events := w.Events()
	errs := w.Errors()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			logger.Info("catalog_changed",
				slog.String("path", w.Path()),
				slog.String("events", describe(batch)))

			start := time.Now()
			if err := reload(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("catalog_reload_failed",
					slog.String("path", w.Path()),
					slog.String("error", err.Error()))
				continue
			}
			logger.Debug("catalog_reloaded", slog.Duration("elapsed", time.Since(start)))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func describe(batch []FileEvent) string {
	parts := make([]string, len(batch))
	for i, ev := range batch {
		parts[i] = ev.Operation.String() + " " + ev.Path
	}
	return strings.Join(parts, ", ")
}
