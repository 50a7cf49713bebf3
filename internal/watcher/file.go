package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports changes to one file. A SQLite file's -wal companion
// counts as the file itself; lock files and temp files are ignored.
type FileWatcher struct {
	path   string
	dir    string
	names  map[string]struct{}
	opts   Options
	logger *slog.Logger

	fsWatcher   *fsnotify.Watcher
	useFsnotify bool
	debouncer   *Debouncer

	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewFileWatcher prepares a watcher for path. The file need not exist yet,
// but its directory must.
func NewFileWatcher(path string, opts Options, logger *slog.Logger) (*FileWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	dir := filepath.Dir(abs)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch directory %s: not a directory", dir)
	}

	base := filepath.Base(abs)
	w := &FileWatcher{
		path:      abs,
		dir:       dir,
		names:     map[string]struct{}{base: {}, base + "-wal": {}},
		opts:      opts,
		logger:    logger,
		debouncer: NewDebouncer(opts.DebounceWindow, logger),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			w.fsWatcher = fsw
			w.useFsnotify = true
		} else {
			logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// Start watches until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	go w.forwardDebounced(ctx)

	if w.useFsnotify {
		if err := w.fsWatcher.Add(w.dir); err != nil {
			w.logger.Warn("fsnotify_add_failed",
				slog.String("dir", w.dir),
				slog.String("error", err.Error()))
			_ = w.fsWatcher.Close()
			w.useFsnotify = false
		} else {
			return w.runFsnotify(ctx)
		}
	}
	return w.runPolling(ctx)
}

func (w *FileWatcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotify(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FileWatcher) handleFsnotify(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !w.relevant(name) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: name, Operation: op, Timestamp: time.Now()})
}

func (w *FileWatcher) relevant(name string) bool {
	_, ok := w.names[name]
	return ok
}

// fileState is what polling compares between ticks.
type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

func (w *FileWatcher) runPolling(ctx context.Context) error {
	prev := make(map[string]fileState, len(w.names))
	for name := range w.names {
		prev[name] = statFile(filepath.Join(w.dir, name))
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			for name, before := range prev {
				now := statFile(filepath.Join(w.dir, name))
				if op, changed := diffState(before, now); changed {
					w.debouncer.Add(FileEvent{Path: name, Operation: op, Timestamp: time.Now()})
				}
				prev[name] = now
			}
		}
	}
}

func diffState(before, now fileState) (Operation, bool) {
	switch {
	case !before.exists && now.exists:
		return OpCreate, true
	case before.exists && !now.exists:
		return OpDelete, true
	case now.exists && (now.modTime != before.modTime || now.size != before.size):
		return OpModify, true
	default:
		return 0, false
	}
}

func (w *FileWatcher) forwardDebounced(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

func (w *FileWatcher) emitEvents(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.droppedBatches.Add(1)
		w.logger.Warn("watcher_buffer_full",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *FileWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop releases resources and closes Events and Errors. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns debounced batches of changes.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches counts batches dropped because Events was full.
func (w *FileWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// WatcherType returns "fsnotify" or "polling".
func (w *FileWatcher) WatcherType() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}
