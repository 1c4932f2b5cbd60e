package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/cmdlens/internal/rpc"
	"github.com/runger/cmdlens/internal/service"
	"github.com/runger/cmdlens/internal/storage"
)

func TestNewServer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewServer(ServerConfig{SocketPath: "/tmp/x.sock"})
	assert.Error(t, err)

	_, err = NewServer(ServerConfig{API: service.New(service.Dependencies{})})
	assert.Error(t, err)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.Open(context.Background(), storage.Options{Path: filepath.Join(dir, "d.db")})
	require.NoError(t, err)
	defer store.Close()

	socketPath := filepath.Join(dir, "d.sock")
	pidPath := filepath.Join(dir, "d.pid")
	server, err := NewServer(ServerConfig{
		API:        service.New(service.Dependencies{Store: store}),
		SocketPath: socketPath,
		PIDPath:    pidPath,
	})
	require.NoError(t, err)
	require.NoError(t, server.Listen())

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pid, err := ReadPID(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	client, err := rpc.Dial(context.Background(), socketPath, 2*time.Second, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, client.RecordQuery(context.Background(), "logs", 2))
	queries, err := client.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	require.NoError(t, client.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be removed")
	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err), "PID file should be removed")
}

func TestServer_ServeWithoutListen(t *testing.T) {
	t.Parallel()

	server, err := NewServer(ServerConfig{
		API:        service.New(service.Dependencies{}),
		SocketPath: filepath.Join(t.TempDir(), "x.sock"),
	})
	require.NoError(t, err)
	assert.Error(t, server.Serve(context.Background()))
}

func TestServer_ListenReplacesStaleSocket(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "stale.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	server, err := NewServer(ServerConfig{
		API:        service.New(service.Dependencies{}),
		SocketPath: socketPath,
	})
	require.NoError(t, err)
	require.NoError(t, server.Listen())
	server.Shutdown()
	server.Shutdown()

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err))
}
