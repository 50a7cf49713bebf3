package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
)

func testOptions(polling bool) Options {
	return Options{
		DebounceWindow:  50 * time.Millisecond,
		PollInterval:    50 * time.Millisecond,
		EventBufferSize: 4,
		ForcePolling:    polling,
	}
}

func startWatcher(t *testing.T, path string, opts Options) *FileWatcher {
	t.Helper()
	w, err := NewFileWatcher(path, opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-done
	})
	// Let the watch register before the test mutates the file.
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitBatch(t *testing.T, w *FileWatcher) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for watcher batch")
		return nil
	}
}

func sampleRecords(desc string) []catalog.AttributeRecord {
	return []catalog.AttributeRecord{
		{Schema: "public", Table: "clients", Column: "nom", Description: desc},
	}
}

func TestNewFileWatcher_MissingDirectory(t *testing.T) {
	// Given: a path whose directory does not exist
	path := filepath.Join(t.TempDir(), "absent", "catalog.yaml")

	// When: creating a watcher
	_, err := NewFileWatcher(path, DefaultOptions(), nil)

	// Then: it fails
	require.Error(t, err)
}

func TestFileWatcher_AtomicRewrite_EmitsBatch(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watched snapshot file
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			require.NoError(t, catalog.WriteFile(path, sampleRecords("nom du client")))
			w := startWatcher(t, path, testOptions(polling))
			if polling {
				assert.Equal(t, "polling", w.WatcherType())
			}

			// When: the snapshot is rewritten through temp file and rename
			require.NoError(t, catalog.WriteFile(path, sampleRecords("raison sociale du client, plus longue")))

			// Then: a batch naming only the snapshot arrives
			batch := waitBatch(t, w)
			require.NotEmpty(t, batch)
			for _, ev := range batch {
				assert.Equal(t, "catalog.yaml", ev.Path)
			}
		})
	}
}

func TestFileWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	// Given: a watcher on one file in a shared directory
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	w := startWatcher(t, path, testOptions(false))

	// When: other files in the directory change
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.db"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.db.lock"), nil, 0o644))

	// Then: nothing is reported
	select {
	case batch := <-w.Events():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcher_WALCountsAsTarget(t *testing.T) {
	// Given: a watched SQLite file
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	w := startWatcher(t, path, testOptions(false))

	// When: its WAL file is written
	require.NoError(t, os.WriteFile(path+"-wal", []byte("wal"), 0o644))

	// Then: the change is reported
	batch := waitBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "catalog.db-wal", batch[0].Path)
}

func TestFileWatcher_Stop_IsIdempotent(t *testing.T) {
	// Given: a watcher that was never started
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	w, err := NewFileWatcher(path, testOptions(true), nil)
	require.NoError(t, err)

	// When: stopping twice
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	// Then: channels are closed
	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}

func TestDiffState(t *testing.T) {
	now := time.Now()
	present := fileState{exists: true, modTime: now, size: 10}

	tests := []struct {
		name    string
		before  fileState
		after   fileState
		wantOp  Operation
		changed bool
	}{
		{"appears", fileState{}, present, OpCreate, true},
		{"disappears", present, fileState{}, OpDelete, true},
		{"grows", present, fileState{exists: true, modTime: now, size: 11}, OpModify, true},
		{"touched", present, fileState{exists: true, modTime: now.Add(time.Second), size: 10}, OpModify, true},
		{"unchanged", present, present, 0, false},
		{"still absent", fileState{}, fileState{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, changed := diffState(tt.before, tt.after)
			assert.Equal(t, tt.changed, changed)
			if changed {
				assert.Equal(t, tt.wantOp, op)
			}
		})
	}
}

func TestRun_ReloadsOnChangeAndSurvivesFailure(t *testing.T) {
	// Given: a watched snapshot and a reload that fails once
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, catalog.WriteFile(path, sampleRecords("v1")))

	w, err := NewFileWatcher(path, testOptions(true), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	var calls atomic.Int32
	reloaded := make(chan struct{}, 4)
	go Run(ctx, w, func(context.Context) error {
		n := calls.Add(1)
		reloaded <- struct{}{}
		if n == 1 {
			return errors.New("catalog unreadable")
		}
		return nil
	}, nil)
	time.Sleep(100 * time.Millisecond)

	// When: the snapshot changes twice
	require.NoError(t, catalog.WriteFile(path, sampleRecords("v2, with more text")))
	waitReload(t, reloaded)
	require.NoError(t, catalog.WriteFile(path, sampleRecords("v3, with even more text")))
	waitReload(t, reloaded)

	// Then: both changes triggered a reload
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func waitReload(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}
