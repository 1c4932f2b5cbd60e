package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/runger/cmdlens/internal/config"
	"github.com/runger/cmdlens/internal/logging"
	"github.com/runger/cmdlens/internal/metrics"
	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

// Options configures Run.
type Options struct {
	Config  *config.Config
	Paths   *config.Paths
	Logger  *slog.Logger
	Version string

	// Now overrides the store clock (tests).
	Now func() time.Time
}

// Run opens the store, serves the usage API and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives. The store lock file guarantees a
// single owner of the database across daemon and direct CLI use.
func Run(ctx context.Context, opts Options) error {
	if err := CheckNotRoot(); err != nil {
		return err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	paths := opts.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := EnsureRuntimeDir(paths.RuntimeDir); err != nil {
		return fmt.Errorf("failed to secure runtime directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	signal.Ignore(syscall.SIGPIPE)

	dbPath := cfg.DatabasePath(paths)
	store, err := storage.Open(ctx, storage.Options{
		Path:        dbPath,
		Logger:      logger,
		Now:         opts.Now,
		BusyTimeout: time.Duration(cfg.Storage.BusyTimeoutMs) * time.Millisecond,
		LockTimeout: time.Duration(cfg.Storage.LockTimeoutMs) * time.Millisecond,
		QueryCap:    cfg.Storage.QueryCap,
		ResourceCap: cfg.Storage.ResourceCap,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	var exporter *metrics.Exporter
	if cfg.Daemon.MetricsAddr != "" {
		exporter = metrics.New(metrics.DefaultConfig())
	}

	socketPath := cfg.SocketPath(paths)
	server, err := NewServer(ServerConfig{
		API:         service.FromConfig(cfg, store, exporter, logger),
		SocketPath:  socketPath,
		PIDPath:     paths.PIDFile(),
		MetricsAddr: cfg.Daemon.MetricsAddr,
		Metrics:     exporter,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := server.Listen(); err != nil {
		return err
	}

	schemaVersion, err := store.SchemaVersion(ctx)
	if err != nil {
		logger.Warn("failed to read schema version", "error", err)
	}
	logging.LogStartup(logger, logging.StartupInfo{
		Version:       opts.Version,
		InstanceID:    uuid.NewString(),
		ConfigPath:    paths.ConfigFile(),
		DatabasePath:  dbPath,
		SchemaVersion: schemaVersion,
		SocketPath:    socketPath,
		MetricsAddr:   cfg.Daemon.MetricsAddr,
		PID:           os.Getpid(),
	})

	err = server.Serve(ctx)
	reason := "context cancelled"
	if err != nil {
		reason = err.Error()
	}
	logging.LogShutdown(logger, reason)
	return err
}

// IsRunning reports whether the daemon recorded in pidPath is alive.
func IsRunning(pidPath string) bool {
	pid, err := ReadPID(pidPath)
	if err != nil || pid <= 0 {
		return false
	}
	return processAlive(pid)
}

// ReadPID reads the PID from the PID file.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID: %w", err)
	}
	return pid, nil
}

// ErrNotRunning is returned by Stop when no live daemon is found.
var ErrNotRunning = errors.New("daemon not running")

// Stop sends SIGTERM to the daemon in pidPath and waits up to timeout for
// it to exit, killing it afterwards.
func Stop(pidPath string, timeout time.Duration) error {
	pid, err := ReadPID(pidPath)
	if err != nil || pid <= 0 || !processAlive(pid) {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			_ = process.Kill()
			return nil
		case <-ticker.C:
			if !processAlive(pid) {
				return nil
			}
		}
	}
}

// WaitForSocket polls until socketPath exists or ctx/timeout expires.
func WaitForSocket(ctx context.Context, socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(socketPath); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("socket not available after %v", timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
