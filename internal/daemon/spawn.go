package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/execabs"

	"github.com/runger/cmdlens/internal/logging"
)

// BinaryName is the daemon executable looked up by Spawn.
const BinaryName = "cmdlensd"

// SpawnOptions configures a background daemon start.
type SpawnOptions struct {
	// Binary overrides the executable lookup.
	Binary string
	// Args are passed to the daemon unchanged.
	Args []string
	// LogPath receives the daemon's stdout and stderr (default: /dev/null).
	LogPath string
}

// Spawn starts the daemon detached from the calling process group and
// returns its PID without waiting for it to serve.
func Spawn(ctx context.Context, opts SpawnOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	binary := opts.Binary
	if binary == "" {
		var err error
		if binary, err = FindBinary(); err != nil {
			return 0, err
		}
	}

	var (
		out *os.File
		err error
	)
	if opts.LogPath != "" {
		out, err = logging.OpenFile(opts.LogPath)
	} else {
		out, err = os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err != nil {
		return 0, err
	}
	defer out.Close()

	// execabs refuses binaries resolved relative to the working directory.
	cmd := execabs.Command(binary, opts.Args...)
	cmd.Stdout = out
	cmd.Stderr = out
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// SpawnAndWait starts the daemon and waits until its socket appears.
func SpawnAndWait(ctx context.Context, opts SpawnOptions, socketPath string, timeout time.Duration) (int, error) {
	pid, err := Spawn(ctx, opts)
	if err != nil {
		return 0, err
	}
	if err := WaitForSocket(ctx, socketPath, timeout); err != nil {
		return pid, fmt.Errorf("daemon did not start: %w", err)
	}
	return pid, nil
}

// FindBinary locates the daemon executable: $CMDLENS_DAEMON_PATH, the
// directory of the running executable, then $PATH.
func FindBinary() (string, error) {
	if path := os.Getenv("CMDLENS_DAEMON_PATH"); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve CMDLENS_DAEMON_PATH: %w", err)
		}
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
	}

	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), BinaryName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(BinaryName); err == nil {
		if abs, err := filepath.Abs(path); err == nil {
			return abs, nil
		}
		return path, nil
	}

	return "", fmt.Errorf("daemon binary %q not found", BinaryName)
}
