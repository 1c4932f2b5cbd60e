package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Daemon.LogLevel)
	assert.Equal(t, 90, cfg.Storage.RetentionDays)
	assert.Equal(t, 100, cfg.Storage.QueryCap)
	assert.Equal(t, 100, cfg.Storage.ResourceCap)
	assert.Equal(t, 2, cfg.Patterns.MinLength)
	assert.Equal(t, 5, cfg.Patterns.MaxLength)
	assert.Equal(t, 1000, cfg.Patterns.HistoryWindow)
	assert.Equal(t, 2, cfg.Patterns.MinFrequency)
	assert.InDelta(t, 20.0, cfg.Patterns.Saturation, 1e-9)
	assert.InDelta(t, 0.7, cfg.Patterns.FrequencyWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Patterns.RecencyWeight, 1e-9)
	assert.InDelta(t, 0.1, cfg.Patterns.RecencyFloor, 1e-9)
	assert.True(t, cfg.Client.AutoDirect)
	require.NoError(t, cfg.Validate())
}

func TestConfigGetSet(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	tests := []struct {
		key      string
		value    string
		expected string
	}{
		{"daemon.log_level", "debug", "debug"},
		{"daemon.metrics_addr", "127.0.0.1:9464", "127.0.0.1:9464"},
		{"storage.query_cap", "50", "50"},
		{"patterns.max_length", "4", "4"},
		{"patterns.frequency_weight", "0.6", "0.6"},
		{"suggestions.max_results", "10", "10"},
		{"client.auto_direct", "false", "false"},
	}

	for _, tt := range tests {
		require.NoError(t, cfg.Set(tt.key, tt.value), tt.key)
		got, err := cfg.Get(tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.expected, got, tt.key)
	}
}

func TestConfigSet_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"malformed key", "patterns", "2"},
		{"unknown key", "patterns.nope", "2"},
		{"not a number", "storage.query_cap", "many"},
		{"negative int", "storage.query_cap", "-1"},
		{"weight above one", "patterns.recency_weight", "1.5"},
		{"max below min", "patterns.max_length", "1"},
		{"single occurrences kept", "patterns.min_frequency", "1"},
		{"bad log level", "daemon.log_level", "loud"},
		{"bad bool", "client.auto_direct", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			assert.Error(t, cfg.Set(tt.key, tt.value))
			assert.Equal(t, DefaultConfig(), cfg, "failed Set must not mutate the config")
		})
	}
}

func TestListKeys_AllResolvable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	keys := ListKeys()
	require.Len(t, keys, len(fields))
	assert.Equal(t, "daemon.log_file", keys[0])
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestLoadFromFile_MissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Storage.QueryCap)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	require.NoError(t, cfg.Set("patterns.min_length", "3"))
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Patterns.MinLength)
	assert.Equal(t, 5, loaded.Patterns.MaxLength)
}

func TestLoadFromFile_PartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  query_cap: 10\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Storage.QueryCap)
	assert.Equal(t, 100, cfg.Storage.ResourceCap)
}

func TestLoadFromFile_InvalidRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  min_length: 0\n"), 0o644))

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CMDLENS_DB", "/tmp/override.db")
	t.Setenv("CMDLENS_SOCKET", "/tmp/override.sock")
	t.Setenv("CMDLENS_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	paths := &Paths{DataDir: "/data", RuntimeDir: "/run"}
	assert.Equal(t, "/tmp/override.db", cfg.DatabasePath(paths))
	assert.Equal(t, "/tmp/override.sock", cfg.SocketPath(paths))
	assert.Equal(t, "warn", cfg.Daemon.LogLevel)
}

func TestApplyEnvOverrides_IgnoresBadLogLevel(t *testing.T) {
	t.Setenv("CMDLENS_LOG_LEVEL", "verbose")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "info", cfg.Daemon.LogLevel)
}
