package daemon

import (
	"errors"
	"fmt"
	"os"
	"runtime"
)

// ErrRunningAsRoot is returned when the daemon runs with effective UID 0.
var ErrRunningAsRoot = errors.New("refusing to run cmdlensd as root: the usage database belongs to a single user")

// CheckNotRoot fails when the process has root privileges. Skipped on Windows.
func CheckNotRoot() error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if os.Geteuid() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

// EnsureRuntimeDir creates dir with mode 0700, tightening an existing
// directory that is more permissive.
func EnsureRuntimeDir(dir string) error {
	if runtime.GOOS == "windows" {
		return os.MkdirAll(dir, 0o700)
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o700)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dir)
	}

	if info.Mode().Perm() != 0o700 {
		if err := os.Chmod(dir, 0o700); err != nil { //nolint:gosec // G302: owner-only runtime dir
			return fmt.Errorf("failed to fix permissions on %s: %w", dir, err)
		}
	}
	return nil
}
