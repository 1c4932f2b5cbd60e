//go:build windows

package storage

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const windowsStillActive = 259

// tryAcquireLock makes a single attempt to create the lock file exclusively,
// clearing it first if the recorded holder has exited.
func tryAcquireLock(lockPath string) (*LockFile, error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to open lock file: %w", err)
		}
		if pid := readPID(lockPath); pid > 0 && !processExists(pid) {
			_ = os.Remove(lockPath)
			return tryAcquireLock(lockPath)
		}
		return nil, errLockBusy
	}

	if err := writePID(file); err != nil {
		file.Close()
		_ = os.Remove(lockPath)
		return nil, err
	}

	return &LockFile{path: lockPath, file: file}, nil
}

func unlockFile(*os.File) error {
	return nil
}

// IsLocked reports whether a live process holds the lock for dbPath.
func IsLocked(dbPath string) bool {
	lockPath := LockPath(dbPath)
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	pid := readPID(lockPath)
	return pid <= 0 || processExists(pid)
}

func readPID(lockPath string) int {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0
	}
	return pid
}

func processExists(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == windowsStillActive
}
