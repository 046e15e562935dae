package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/markdex/markdex/internal/faults"
)

// InstanceLock guards a data directory against concurrent markdex
// processes using a cross-process file lock.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewInstanceLock creates a lock for the given data directory. The
// lock file lives at <dir>/.markdex.lock.
func NewInstanceLock(dir string) *InstanceLock {
	path := filepath.Join(dir, ".markdex.lock")
	return &InstanceLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock without blocking. A lock held by another
// process fails with faults.ErrConflict.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("data directory %s is in use by another instance: %w",
			filepath.Dir(l.path), faults.ErrConflict)
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call on an unheld lock.
func (l *InstanceLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *InstanceLock) Path() string {
	return l.path
}
