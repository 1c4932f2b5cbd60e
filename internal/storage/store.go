// Package storage provides the SQLite-backed event store for cmdlens.
// It records command invocations, search queries and resource accesses,
// serves aggregate views over them, and persists mined command patterns.
package storage

import (
	"context"
	"time"
)

// Store defines the interface for all storage operations.
// Every method holds the store's single connection for its full duration.
type Store interface {
	// Recording
	RecordInvocation(ctx context.Context, inv NewInvocation) error
	RecordQuery(ctx context.Context, query string, resultCount int) error
	RecordResourceAccess(ctx context.Context, ref ResourceRef) error
	PurgeInvocationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountInvocationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Aggregates
	CommandStats(ctx context.Context, commandID string) ([]CommandStats, error)
	TopCommands(ctx context.Context, limit int) ([]CommandStats, error)
	RecentQueries(ctx context.Context, limit int) ([]RecentQuery, error)
	RecentResources(ctx context.Context, limit int, kind string) ([]ResourceSummary, error)
	TopResources(ctx context.Context, limit int, kind string) ([]ResourceSummary, error)
	CommandHistory(ctx context.Context, limit int) ([]CommandHistory, error)

	// Patterns
	RefreshPatterns(ctx context.Context, window int, mine MineFunc) ([]CommandPattern, error)
	Patterns(ctx context.Context, minConfidence float64, limit int) ([]CommandPattern, error)
	PatternsByConfidence(ctx context.Context) ([]CommandPattern, error)

	// Lifecycle
	Vacuum(ctx context.Context) error
	Now() time.Time
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

// MineFunc derives patterns from successful invocations in chronological
// order (oldest first). now is the store clock at the start of the refresh.
type MineFunc func(history []CommandHistory, now time.Time) []CommandPattern

// NewInvocation describes a command invocation to record.
type NewInvocation struct {
	CommandID       string
	ExecutionTimeMs *int64 // nil = not measured
	Success         bool
	ErrorMessage    *string
	Context         *string
}

// ResourceRef identifies a resource by its (kind, name, namespace, context) key.
type ResourceRef struct {
	Kind      string
	Name      string
	Namespace *string
	Context   *string
}

// CommandStats aggregates the successful invocations of one command.
type CommandStats struct {
	CommandID        string   `json:"command_id"`
	HitCount         int64    `json:"hit_count"`
	LastUsed         string   `json:"last_used"`
	AvgExecutionTime *float64 `json:"avg_execution_time"`
}

// RecentQuery is one retained search query.
type RecentQuery struct {
	Query       string `json:"query"`
	Timestamp   string `json:"timestamp"`
	ResultCount int    `json:"result_count"`
}

// ResourceSummary is one retained resource access row.
type ResourceSummary struct {
	Kind         string  `json:"kind"`
	Name         string  `json:"name"`
	Namespace    *string `json:"namespace"`
	Context      *string `json:"context"`
	LastAccessed string  `json:"last_accessed"`
	AccessCount  int64   `json:"access_count"`
}

// CommandHistory is a single invocation as returned by the history view.
type CommandHistory struct {
	CommandID       string `json:"command_id"`
	Timestamp       string `json:"timestamp"`
	ExecutionTimeMs *int64 `json:"execution_time_ms"`
	Success         bool   `json:"success"`
}

// CommandPattern is a mined, recurring command sequence.
type CommandPattern struct {
	PatternID              string   `json:"pattern_id"`
	CommandSequence        []string `json:"command_sequence"`
	Frequency              int64    `json:"frequency"`
	Confidence             float64  `json:"confidence"`
	LastSeen               string   `json:"last_seen"`
	AvgTimeBetweenCommands *float64 `json:"avg_time_between_commands"`
}
