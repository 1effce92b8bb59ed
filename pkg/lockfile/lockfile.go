// Package lockfile grants exclusive update rights over a file by creating a
// sibling "<resource>.lock" file. The lock is either closed, which releases
// it without touching the resource, or committed, which atomically renames
// the lock file over the resource.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	Suffix     = ".lock"
	retryDelay = 5 * time.Millisecond
)

var (
	ErrLocked   = errors.New("resource is locked")
	ErrReleased = errors.New("lock already released")
)

// renameFile is replaced in tests to simulate a failing rename.
var renameFile = os.Rename

// Fail controls what Acquire does when another holder owns the lock.
type Fail struct {
	wait time.Duration
}

// FailImmediately makes Acquire return ErrLocked on the first conflict.
func FailImmediately() Fail { return Fail{} }

// FailAfter makes Acquire retry until d has elapsed.
func FailAfter(d time.Duration) Fail { return Fail{wait: d} }

func (f Fail) String() string {
	if f.wait <= 0 {
		return "immediately"
	}
	return "after " + f.wait.String()
}

// AcquireError is returned when the lock is held by someone else.
type AcquireError struct {
	Path string
	Mode Fail
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire lock %q (fail %s): %s", e.Path, e.Mode, ErrLocked)
}

func (e *AcquireError) Is(target error) bool {
	return target == ErrLocked
}

// File is a held lock. Content written to it becomes the resource's content
// on Commit.
type File struct {
	resource string
	path     string
	f        *os.File
}

// Acquire locks resource for update. The resource itself need not exist.
func Acquire(resource string, mode Fail) (*File, error) {
	lockPath := resource + Suffix
	deadline := time.Now().Add(mode.wait)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return &File{resource: resource, path: lockPath, f: f}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire lock %q: %w", lockPath, err)
		}
		if mode.wait <= 0 || time.Now().After(deadline) {
			return nil, &AcquireError{Path: lockPath, Mode: mode}
		}
		time.Sleep(retryDelay)
	}
}

// Resource returns the path the lock protects.
func (l *File) Resource() string { return l.resource }

// Path returns the path of the lock file itself.
func (l *File) Path() string { return l.path }

func (l *File) Write(p []byte) (int, error) {
	if l.f == nil {
		return 0, ErrReleased
	}
	return l.f.Write(p)
}

// Close releases the lock without modifying the resource.
func (l *File) Close() error {
	if l.f == nil {
		return ErrReleased
	}
	closeErr := l.f.Close()
	l.f = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %q: %w", l.path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("release lock %q: %w", l.path, closeErr)
	}
	return nil
}

// Commit flushes what was written and renames the lock file over the
// resource. On failure the lock is released and the resource is untouched.
func (l *File) Commit() error {
	if l.f == nil {
		return ErrReleased
	}
	f := l.f
	l.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(l.path)
		return fmt.Errorf("commit lock %q: sync: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("commit lock %q: close: %w", l.path, err)
	}
	if err := renameFile(l.path, l.resource); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("commit lock %q: rename: %w", l.path, err)
	}
	return nil
}
