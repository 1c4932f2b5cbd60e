// Package rpc carries the usage operations over gRPC. Messages are plain
// structs encoded with a JSON codec, so no generated stubs are involved.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

// Server serves a service.API as cmdlens.v1.Usage.
type Server struct {
	grpcServer *grpc.Server
	logger     *slog.Logger
}

// NewServer registers api on a fresh gRPC server. A nil logger uses slog.Default().
func NewServer(api service.API, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.interceptor))
	s.grpcServer.RegisterService(&usageServiceDesc, api)
	return s
}

// Serve accepts connections on lis until Stop or GracefulStop is called.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// GracefulStop waits for in-flight calls, then stops the server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Stop closes all connections immediately.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// interceptor tags each call with a request id, logs it and converts
// service errors to gRPC statuses carrying the same message.
func (s *Server) interceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	requestID := uuid.NewString()
	start := time.Now()

	resp, err := handler(ctx, req)

	attrs := []any{
		"method", info.FullMethod,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		s.logger.Debug("rpc failed", append(attrs, "error", err)...)
		return nil, toStatus(err)
	}
	s.logger.Debug("rpc completed", attrs...)
	return resp, nil
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
