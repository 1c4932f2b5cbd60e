// Package daemon hosts the cmdlens usage service: it owns the event store,
// serves gRPC on a unix socket and optionally exposes Prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runger/cmdlens/internal/metrics"
	"github.com/runger/cmdlens/internal/rpc"
	"github.com/runger/cmdlens/internal/service"
)

// shutdownTimeout bounds the metrics server drain.
const shutdownTimeout = 5 * time.Second

// ServerConfig configures a Server.
type ServerConfig struct {
	// API is the service exposed over the socket (required).
	API service.API

	// SocketPath is the unix socket to listen on (required).
	SocketPath string

	// PIDPath is written with the daemon PID while serving (optional).
	PIDPath string

	// MetricsAddr enables the /metrics endpoint when non-empty.
	MetricsAddr string

	// Metrics is served at MetricsAddr.
	Metrics *metrics.Exporter

	Logger *slog.Logger
}

// Server serves the usage API until its context is cancelled.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger

	rpc      *rpc.Server
	listener net.Listener
	http     *http.Server

	shutdownOnce sync.Once
}

// NewServer validates cfg and builds the gRPC server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.API == nil {
		return nil, errors.New("api is required")
	}
	if cfg.SocketPath == "" {
		return nil, errors.New("socket path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		rpc:    rpc.NewServer(cfg.API, logger),
	}, nil
}

// Listen binds the unix socket, replacing a stale one, and writes the PID file.
func (s *Server) Listen() error {
	socketPath := s.cfg.SocketPath
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stale socket", "path", socketPath, "error", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	if s.cfg.PIDPath != "" {
		pid := strconv.Itoa(os.Getpid()) + "\n"
		if err := os.WriteFile(s.cfg.PIDPath, []byte(pid), 0o600); err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to write PID file: %w", err)
		}
	}

	s.listener = listener
	return nil
}

// Serve runs the gRPC server and the optional metrics endpoint until ctx is
// cancelled or either server fails. Listen must be called first.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A direct Shutdown ends Serve; release the watcher below.
		defer cancel()
		if err := s.rpc.Serve(s.listener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.cfg.Metrics.Handler())
		s.http = &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("metrics endpoint listening", "addr", s.cfg.MetricsAddr)
			if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.Shutdown()
		return nil
	})

	return g.Wait()
}

// Shutdown stops both servers and removes the socket and PID file. It is
// safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.rpc.GracefulStop()

		if s.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.http.Shutdown(ctx); err != nil {
				s.logger.Warn("metrics server shutdown failed", "error", err)
			}
		}

		s.cleanup()
	})
}

func (s *Server) cleanup() {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove socket", "path", s.cfg.SocketPath, "error", err)
	}
	if s.cfg.PIDPath == "" {
		return
	}
	if err := os.Remove(s.cfg.PIDPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove PID file", "path", s.cfg.PIDPath, "error", err)
	}
}
