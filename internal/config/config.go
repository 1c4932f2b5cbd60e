package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the cmdlens configuration.
type Config struct {
	Daemon      DaemonConfig      `yaml:"daemon"`
	Storage     StorageConfig     `yaml:"storage"`
	Patterns    PatternsConfig    `yaml:"patterns"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Client      ClientConfig      `yaml:"client"`
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	SocketPath  string `yaml:"socket_path"`  // Unix socket path (overrides default)
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	LogFile     string `yaml:"log_file"`     // Log file path (empty = stderr)
	MetricsAddr string `yaml:"metrics_addr"` // host:port for /metrics (empty = disabled)
}

// StorageConfig holds event store settings.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`   // Database file (overrides default)
	RetentionDays int    `yaml:"retention_days"`  // Invocation age limit for cleanup
	QueryCap      int    `yaml:"query_cap"`       // Rows kept in recent_queries
	ResourceCap   int    `yaml:"resource_cap"`    // Rows kept in recent_resources
	BusyTimeoutMs int    `yaml:"busy_timeout_ms"` // SQLite busy_timeout pragma
	LockTimeoutMs int    `yaml:"lock_timeout_ms"` // Wait for the store lock file
}

// PatternsConfig holds pattern mining and scoring settings.
type PatternsConfig struct {
	MinLength        int     `yaml:"min_length"`
	MaxLength        int     `yaml:"max_length"`
	HistoryWindow    int     `yaml:"history_window"`     // Successful invocations scanned per run
	MinFrequency     int     `yaml:"min_frequency"`      // Patterns below this are discarded
	Saturation       float64 `yaml:"saturation"`         // Frequency at which the frequency factor reaches 1
	RecencyScaleDays float64 `yaml:"recency_scale_days"` // Days at which the recency factor halves
	FrequencyWeight  float64 `yaml:"frequency_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	RecencyFloor     float64 `yaml:"recency_floor"`
	MinConfidence    float64 `yaml:"min_confidence"` // Default filter for patterns list
}

// SuggestionsConfig holds next-command suggestion settings.
type SuggestionsConfig struct {
	MaxResults   int `yaml:"max_results"`
	HistoryDepth int `yaml:"history_depth"` // Recent commands fed to the matcher
}

// ClientConfig holds CLI client settings.
type ClientConfig struct {
	ConnectTimeoutMs int  `yaml:"connect_timeout_ms"` // Socket connection timeout
	RequestTimeoutMs int  `yaml:"request_timeout_ms"` // Per-call deadline
	AutoDirect       bool `yaml:"auto_direct"`        // Open the store directly when no daemon runs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			LogLevel: "info",
		},
		Storage: StorageConfig{
			RetentionDays: 90,
			QueryCap:      100,
			ResourceCap:   100,
			BusyTimeoutMs: 5000,
			LockTimeoutMs: 5000,
		},
		Patterns: PatternsConfig{
			MinLength:        2,
			MaxLength:        5,
			HistoryWindow:    1000,
			MinFrequency:     2,
			Saturation:       20,
			RecencyScaleDays: 30,
			FrequencyWeight:  0.7,
			RecencyWeight:    0.3,
			RecencyFloor:     0.1,
			MinConfidence:    0.0,
		},
		Suggestions: SuggestionsConfig{
			MaxResults:   5,
			HistoryDepth: 3,
		},
		Client: ClientConfig{
			ConnectTimeoutMs: 500,
			RequestTimeoutMs: 5000,
			AutoDirect:       true,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFromFile(DefaultPaths().ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DatabasePath resolves the database file, preferring the configured override.
func (c *Config) DatabasePath(p *Paths) string {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath
	}
	return p.DatabaseFile()
}

// SocketPath resolves the daemon socket, preferring the configured override.
func (c *Config) SocketPath(p *Paths) string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return p.SocketFile()
}

// ConnectTimeout returns the client connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Client.ConnectTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the per-call client deadline as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeoutMs) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}

	s := c.Storage
	if s.RetentionDays < 0 {
		return errors.New("storage.retention_days must be >= 0")
	}
	if s.QueryCap < 0 || s.ResourceCap < 0 {
		return errors.New("storage caps must be >= 0")
	}
	if s.BusyTimeoutMs < 0 || s.LockTimeoutMs < 0 {
		return errors.New("storage timeouts must be >= 0")
	}

	p := c.Patterns
	if p.MinLength < 1 {
		return errors.New("patterns.min_length must be >= 1")
	}
	if p.MaxLength < p.MinLength {
		return errors.New("patterns.max_length must be >= patterns.min_length")
	}
	if p.HistoryWindow < 0 {
		return errors.New("patterns.history_window must be >= 0")
	}
	if p.MinFrequency < 2 {
		return errors.New("patterns.min_frequency must be >= 2")
	}
	if p.Saturation <= 0 || p.RecencyScaleDays <= 0 {
		return errors.New("patterns.saturation and patterns.recency_scale_days must be > 0")
	}
	for key, v := range map[string]float64{
		"frequency_weight": p.FrequencyWeight,
		"recency_weight":   p.RecencyWeight,
		"recency_floor":    p.RecencyFloor,
		"min_confidence":   p.MinConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("patterns.%s must be within [0, 1] (got: %g)", key, v)
		}
	}

	if c.Suggestions.MaxResults < 0 || c.Suggestions.HistoryDepth < 0 {
		return errors.New("suggestions values must be >= 0")
	}

	if c.Client.ConnectTimeoutMs < 0 || c.Client.RequestTimeoutMs < 0 {
		return errors.New("client timeouts must be >= 0")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CMDLENS_DB"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("CMDLENS_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("CMDLENS_LOG_LEVEL"); v != "" && isValidLogLevel(v) {
		c.Daemon.LogLevel = v
	}
}

// field binds a dotted key to accessors on a Config.
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			if n < 0 {
				return errors.New("must be non-negative")
			}
			*p(c) = n
			return nil
		},
	}
}

func floatField(p func(c *Config) *float64) field {
	return field{
		get: func(c *Config) string { return strconv.FormatFloat(*p(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			if f < 0 {
				return errors.New("must be non-negative")
			}
			*p(c) = f
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
	}
}

var fields = map[string]field{
	"daemon.socket_path":  stringField(func(c *Config) *string { return &c.Daemon.SocketPath }),
	"daemon.log_level":    stringField(func(c *Config) *string { return &c.Daemon.LogLevel }),
	"daemon.log_file":     stringField(func(c *Config) *string { return &c.Daemon.LogFile }),
	"daemon.metrics_addr": stringField(func(c *Config) *string { return &c.Daemon.MetricsAddr }),

	"storage.database_path":   stringField(func(c *Config) *string { return &c.Storage.DatabasePath }),
	"storage.retention_days":  intField(func(c *Config) *int { return &c.Storage.RetentionDays }),
	"storage.query_cap":       intField(func(c *Config) *int { return &c.Storage.QueryCap }),
	"storage.resource_cap":    intField(func(c *Config) *int { return &c.Storage.ResourceCap }),
	"storage.busy_timeout_ms": intField(func(c *Config) *int { return &c.Storage.BusyTimeoutMs }),
	"storage.lock_timeout_ms": intField(func(c *Config) *int { return &c.Storage.LockTimeoutMs }),

	"patterns.min_length":         intField(func(c *Config) *int { return &c.Patterns.MinLength }),
	"patterns.max_length":         intField(func(c *Config) *int { return &c.Patterns.MaxLength }),
	"patterns.history_window":     intField(func(c *Config) *int { return &c.Patterns.HistoryWindow }),
	"patterns.min_frequency":      intField(func(c *Config) *int { return &c.Patterns.MinFrequency }),
	"patterns.saturation":         floatField(func(c *Config) *float64 { return &c.Patterns.Saturation }),
	"patterns.recency_scale_days": floatField(func(c *Config) *float64 { return &c.Patterns.RecencyScaleDays }),
	"patterns.frequency_weight":   floatField(func(c *Config) *float64 { return &c.Patterns.FrequencyWeight }),
	"patterns.recency_weight":     floatField(func(c *Config) *float64 { return &c.Patterns.RecencyWeight }),
	"patterns.recency_floor":      floatField(func(c *Config) *float64 { return &c.Patterns.RecencyFloor }),
	"patterns.min_confidence":     floatField(func(c *Config) *float64 { return &c.Patterns.MinConfidence }),

	"suggestions.max_results":   intField(func(c *Config) *int { return &c.Suggestions.MaxResults }),
	"suggestions.history_depth": intField(func(c *Config) *int { return &c.Suggestions.HistoryDepth }),

	"client.connect_timeout_ms": intField(func(c *Config) *int { return &c.Client.ConnectTimeoutMs }),
	"client.request_timeout_ms": intField(func(c *Config) *int { return &c.Client.RequestTimeoutMs }),
	"client.auto_direct":        boolField(func(c *Config) *bool { return &c.Client.AutoDirect }),
}

func lookup(key string) (field, error) {
	if strings.Count(key, ".") != 1 {
		return field{}, errors.New("key must be in format 'section.key'")
	}
	f, ok := fields[key]
	if !ok {
		return field{}, fmt.Errorf("unknown key: %s", key)
	}
	return f, nil
}

// Get retrieves a configuration value by dot-separated key,
// for example "patterns.min_length".
func (c *Config) Get(key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.get(c), nil
}

// Set sets a configuration value by dot-separated key. The resulting
// configuration must still validate.
func (c *Config) Set(key, value string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// ListKeys returns every configuration key in section order.
func ListKeys() []string {
	keys := make([]string, 0, len(fields))
	for _, section := range []string{"daemon", "storage", "patterns", "suggestions", "client"} {
		var group []string
		for k := range fields {
			if strings.HasPrefix(k, section+".") {
				group = append(group, k)
			}
		}
		sort.Strings(group)
		keys = append(keys, group...)
	}
	return keys
}
