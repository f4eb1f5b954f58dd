// Package lock provides the cross-process singleton lock over
// $DEWEY_HOME described in spec §5: Dewey allows one writer process per
// index at a time, enforced with an advisory file lock rather than by
// any in-process coordination, since two independent `dewey` invocations
// share no memory.
package lock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
)

// ProcessLock is an exclusive, cross-process advisory lock rooted at a
// Dewey home directory.
type ProcessLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a process lock for dir; the lock file is
// "<dir>/.dewey.lock" and is created on first Lock/TryLock.
func New(dir string) *ProcessLock {
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, ".dewey.lock")
	return &ProcessLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the exclusive lock is acquired.
func (l *ProcessLock) Lock() error {
	if err := l.flock.Lock(); err != nil {
		return deweyerrors.IO("failed to acquire dewey process lock", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking. ok is false if
// another process currently holds it.
func (l *ProcessLock) TryLock() (ok bool, err error) {
	acquired, lockErr := l.flock.TryLock()
	if lockErr != nil {
		return false, deweyerrors.IO("failed to acquire dewey process lock", lockErr)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *ProcessLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return deweyerrors.IO("failed to release dewey process lock", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file's path.
func (l *ProcessLock) Path() string {
	return l.path
}
