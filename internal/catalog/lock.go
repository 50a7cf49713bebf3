package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// fileLock guards a catalog snapshot against concurrent writers in other
// processes. Readers take a shared lock, writers an exclusive one.
// The lock file lives next to the snapshot as <name>.lock.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(snapshot string) *fileLock {
	lockPath := snapshot + ".lock"
	return &fileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

func (l *fileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}

// Lock acquires an exclusive lock, blocking until available.
func (l *fileLock) Lock() error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// RLock acquires a shared lock, blocking while a writer holds the file.
// Unlike Lock it never creates directories.
func (l *fileLock) RLock() error {
	if err := l.flock.RLock(); err != nil {
		return fmt.Errorf("failed to acquire shared lock: %w", err)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked fileLock.
func (l *fileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
