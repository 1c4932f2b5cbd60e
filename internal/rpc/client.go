package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
	"github.com/runger/cmdlens/internal/suggest"
)

// ErrDaemonNotRunning is returned by Dial when no socket exists.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// Client implements service.API against a running daemon.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ service.API = (*Client)(nil)

// Dial connects to the daemon socket at socketPath and waits up to
// connectTimeout for the connection to become ready. requestTimeout bounds
// each call (0 = no deadline beyond the caller's context).
func Dial(ctx context.Context, socketPath string, connectTimeout, requestTimeout time.Duration) (*Client, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return nil, fmt.Errorf("%w: socket not found: %s", ErrDaemonNotRunning, socketPath)
	}

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}

	conn, err := grpc.NewClient(
		"passthrough:///"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}
	if err := waitReady(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	return NewClient(conn, requestTimeout), nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn, requestTimeout time.Duration) *Client {
	return &Client{conn: conn, timeout: requestTimeout}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(codecName))
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() == codes.InvalidArgument {
		return fmt.Errorf("%w: %s", storage.ErrInvalidArgument, st.Message())
	}
	return errors.New(st.Message())
}

func (c *Client) RecordInvocation(ctx context.Context, inv storage.NewInvocation) error {
	return c.invoke(ctx, MethodRecordInvocation, &RecordInvocationRequest{
		CommandID:       inv.CommandID,
		ExecutionTimeMs: inv.ExecutionTimeMs,
		Success:         inv.Success,
		ErrorMessage:    inv.ErrorMessage,
		Context:         inv.Context,
	}, &Empty{})
}

func (c *Client) RecordQuery(ctx context.Context, query string, resultCount int) error {
	return c.invoke(ctx, MethodRecordQuery, &RecordQueryRequest{Query: query, ResultCount: resultCount}, &Empty{})
}

func (c *Client) RecordResourceAccess(ctx context.Context, ref storage.ResourceRef) error {
	return c.invoke(ctx, MethodRecordResourceAccess, &RecordResourceAccessRequest{
		Kind:      ref.Kind,
		Name:      ref.Name,
		Namespace: ref.Namespace,
		Context:   ref.Context,
	}, &Empty{})
}

func (c *Client) CleanupOldData(ctx context.Context) (int64, error) {
	var resp CleanupResponse
	if err := c.invoke(ctx, MethodCleanupOldData, &Empty{}, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (c *Client) EstimateCleanup(ctx context.Context) (int64, error) {
	var resp CleanupResponse
	if err := c.invoke(ctx, MethodEstimateCleanup, &Empty{}, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (c *Client) CommandStats(ctx context.Context, commandID string) ([]storage.CommandStats, error) {
	var resp CommandStatsResponse
	if err := c.invoke(ctx, MethodCommandStats, &CommandStatsRequest{CommandID: commandID}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Stats), nil
}

func (c *Client) TopCommands(ctx context.Context, limit int) ([]storage.CommandStats, error) {
	var resp CommandStatsResponse
	if err := c.invoke(ctx, MethodTopCommands, &LimitRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Stats), nil
}

func (c *Client) RecentQueries(ctx context.Context, limit int) ([]storage.RecentQuery, error) {
	var resp QueriesResponse
	if err := c.invoke(ctx, MethodRecentQueries, &LimitRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Queries), nil
}

func (c *Client) RecentResources(ctx context.Context, limit int, kind string) ([]storage.ResourceSummary, error) {
	var resp ResourcesResponse
	if err := c.invoke(ctx, MethodRecentResources, &ResourcesRequest{Limit: limit, Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Resources), nil
}

func (c *Client) TopResources(ctx context.Context, limit int, kind string) ([]storage.ResourceSummary, error) {
	var resp ResourcesResponse
	if err := c.invoke(ctx, MethodTopResources, &ResourcesRequest{Limit: limit, Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Resources), nil
}

func (c *Client) CommandHistory(ctx context.Context, limit int) ([]storage.CommandHistory, error) {
	var resp HistoryResponse
	if err := c.invoke(ctx, MethodCommandHistory, &LimitRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.History), nil
}

func (c *Client) DetectPatterns(ctx context.Context, minLen, maxLen int) ([]storage.CommandPattern, error) {
	var resp PatternsResponse
	if err := c.invoke(ctx, MethodDetectPatterns, &DetectPatternsRequest{MinLen: minLen, MaxLen: maxLen}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Patterns), nil
}

func (c *Client) GetPatterns(ctx context.Context, minConfidence float64, limit int) ([]storage.CommandPattern, error) {
	var resp PatternsResponse
	if err := c.invoke(ctx, MethodGetPatterns, &GetPatternsRequest{MinConfidence: minConfidence, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Patterns), nil
}

func (c *Client) GetPatternSuggestions(ctx context.Context, lastCommands []string, limit int) ([]suggest.Suggestion, error) {
	var resp SuggestionsResponse
	req := &SuggestionsRequest{LastCommands: lastCommands, Limit: limit}
	if err := c.invoke(ctx, MethodGetPatternSuggestions, req, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Suggestions), nil
}
