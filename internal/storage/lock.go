package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockAcquireFailed is returned when the store lock cannot be acquired.
var ErrLockAcquireFailed = errors.New("failed to acquire store lock")

// ErrLockTimeout is returned when the lock cannot be acquired within the timeout.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// errLockBusy signals that another process holds the lock.
var errLockBusy = errors.New("lock held by another process")

// LockFile is an advisory lock giving one process ownership of a store file.
type LockFile struct {
	path string
	file *os.File
}

// LockOptions configures lock acquisition behavior.
type LockOptions struct {
	// Timeout is the maximum time to wait for the lock.
	// If zero, the lock attempt is non-blocking.
	Timeout time.Duration

	// RetryInterval is how often to retry acquiring the lock.
	// If zero, defaults to 100ms.
	RetryInterval time.Duration
}

// LockPath returns the lock file guarding the given database file.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// AcquireLock takes the exclusive lock for dbPath, retrying until
// opts.Timeout elapses or ctx is cancelled. The caller must Release it.
func AcquireLock(ctx context.Context, dbPath string, opts LockOptions) (*LockFile, error) {
	lockPath := LockPath(dbPath)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	if opts.RetryInterval == 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}

	deadline := time.Now().Add(opts.Timeout)

	for {
		lf, err := tryAcquireLock(lockPath)
		if err == nil {
			return lf, nil
		}
		if !errors.Is(err, errLockBusy) {
			return nil, fmt.Errorf("%w: %w", ErrLockAcquireFailed, err)
		}
		if opts.Timeout == 0 {
			return nil, fmt.Errorf("%w: %w", ErrLockAcquireFailed, err)
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryInterval):
		}
	}
}

// Path returns the path to the lock file.
func (lf *LockFile) Path() string {
	return lf.path
}

// Release releases the lock and removes the lock file.
// It is safe to call Release multiple times.
func (lf *LockFile) Release() error {
	if lf == nil || lf.file == nil {
		return nil
	}

	unlockErr := unlockFile(lf.file)
	closeErr := lf.file.Close()
	lf.file = nil
	_ = os.Remove(lf.path)

	if unlockErr != nil {
		return fmt.Errorf("failed to release lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lock file: %w", closeErr)
	}
	return nil
}

// LockHolderPID reads the PID recorded in the lock file for dbPath.
// Returns 0 if the PID cannot be determined.
func LockHolderPID(dbPath string) int {
	data, err := os.ReadFile(LockPath(dbPath))
	if err != nil {
		return 0
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0
	}
	return pid
}

// writePID records the owning process id in the lock file for diagnostics.
func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	return file.Sync()
}
