// Package watcher reports changes to a catalog file.
//
// A FileWatcher watches the file's parent directory with fsnotify, so
// atomic replace-by-rename is seen, and falls back to polling the file's
// size and modification time when fsnotify is unavailable (network mounts,
// some container volumes). Events are debounced so an editor save or an
// export that touches the file several times triggers one reload.
//
// Usage:
//
//	w, err := watcher.NewFileWatcher("catalog.yaml", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx)
//
//	for batch := range w.Events() {
//	    // reload
//	}
package watcher
