package rpc

import (
	"github.com/runger/cmdlens/internal/storage"
	"github.com/runger/cmdlens/internal/suggest"
)

// Empty is the response of operations that return nothing.
type Empty struct{}

type RecordInvocationRequest struct {
	CommandID       string  `json:"command_id"`
	ExecutionTimeMs *int64  `json:"execution_time_ms,omitempty"`
	Success         bool    `json:"success"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	Context         *string `json:"context,omitempty"`
}

type RecordQueryRequest struct {
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
}

type RecordResourceAccessRequest struct {
	Kind      string  `json:"kind"`
	Name      string  `json:"name"`
	Namespace *string `json:"namespace,omitempty"`
	Context   *string `json:"context,omitempty"`
}

// CleanupResponse reports the invocations removed (or that would be removed).
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

type CommandStatsRequest struct {
	CommandID string `json:"command_id,omitempty"`
}

type LimitRequest struct {
	Limit int `json:"limit"`
}

type ResourcesRequest struct {
	Limit int    `json:"limit"`
	Kind  string `json:"kind,omitempty"`
}

type DetectPatternsRequest struct {
	MinLen int `json:"min_len"`
	MaxLen int `json:"max_len"`
}

type GetPatternsRequest struct {
	MinConfidence float64 `json:"min_confidence"`
	Limit         int     `json:"limit"`
}

type SuggestionsRequest struct {
	LastCommands []string `json:"last_commands"`
	Limit        int      `json:"limit"`
}

type CommandStatsResponse struct {
	Stats []storage.CommandStats `json:"stats"`
}

type QueriesResponse struct {
	Queries []storage.RecentQuery `json:"queries"`
}

type ResourcesResponse struct {
	Resources []storage.ResourceSummary `json:"resources"`
}

type HistoryResponse struct {
	History []storage.CommandHistory `json:"history"`
}

type PatternsResponse struct {
	Patterns []storage.CommandPattern `json:"patterns"`
}

type SuggestionsResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// orEmpty keeps "no rows" distinct from a missing field on the wire.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
