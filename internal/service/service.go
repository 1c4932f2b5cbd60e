// Package service is the request/response surface of cmdlens. Every
// operation is transport independent: the gRPC server and the CLI's direct
// mode both call the same Service.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/runger/cmdlens/internal/config"
	"github.com/runger/cmdlens/internal/metrics"
	"github.com/runger/cmdlens/internal/pattern"
	"github.com/runger/cmdlens/internal/retention"
	"github.com/runger/cmdlens/internal/storage"
	"github.com/runger/cmdlens/internal/suggest"
)

// Operation names, shared by metrics labels and RPC method names.
const (
	OpRecordInvocation      = "record_invocation"
	OpRecordQuery           = "record_query"
	OpRecordResourceAccess  = "record_resource_access"
	OpCleanupOldData        = "cleanup_old_data"
	OpEstimateCleanup       = "estimate_cleanup"
	OpCommandStats          = "command_stats"
	OpTopCommands           = "top_commands"
	OpRecentQueries         = "recent_queries"
	OpRecentResources       = "recent_resources"
	OpTopResources          = "top_resources"
	OpCommandHistory        = "command_history"
	OpDetectPatterns        = "detect_patterns"
	OpGetPatterns           = "get_patterns"
	OpGetPatternSuggestions = "get_pattern_suggestions"
)

// failurePhrases render the "failed to ..." boundary message per operation.
var failurePhrases = map[string]string{
	OpRecordInvocation:      "record invocation",
	OpRecordQuery:           "record query",
	OpRecordResourceAccess:  "record resource access",
	OpCleanupOldData:        "cleanup old data",
	OpEstimateCleanup:       "estimate cleanup",
	OpCommandStats:          "get command stats",
	OpTopCommands:           "get top commands",
	OpRecentQueries:         "get recent queries",
	OpRecentResources:       "get recent resources",
	OpTopResources:          "get top resources",
	OpCommandHistory:        "get command history",
	OpDetectPatterns:        "detect patterns",
	OpGetPatterns:           "get patterns",
	OpGetPatternSuggestions: "get pattern suggestions",
}

// API is the full set of usage operations.
type API interface {
	RecordInvocation(ctx context.Context, inv storage.NewInvocation) error
	RecordQuery(ctx context.Context, query string, resultCount int) error
	RecordResourceAccess(ctx context.Context, ref storage.ResourceRef) error
	CleanupOldData(ctx context.Context) (int64, error)
	EstimateCleanup(ctx context.Context) (int64, error)

	CommandStats(ctx context.Context, commandID string) ([]storage.CommandStats, error)
	TopCommands(ctx context.Context, limit int) ([]storage.CommandStats, error)
	RecentQueries(ctx context.Context, limit int) ([]storage.RecentQuery, error)
	RecentResources(ctx context.Context, limit int, kind string) ([]storage.ResourceSummary, error)
	TopResources(ctx context.Context, limit int, kind string) ([]storage.ResourceSummary, error)
	CommandHistory(ctx context.Context, limit int) ([]storage.CommandHistory, error)

	DetectPatterns(ctx context.Context, minLen, maxLen int) ([]storage.CommandPattern, error)
	GetPatterns(ctx context.Context, minConfidence float64, limit int) ([]storage.CommandPattern, error)
	GetPatternSuggestions(ctx context.Context, lastCommands []string, limit int) ([]suggest.Suggestion, error)
}

// Dependencies holds everything a Service needs. Only Store is required.
type Dependencies struct {
	Store           storage.Store
	PatternConfig   pattern.Config
	RetentionPolicy *retention.Policy
	Metrics         *metrics.Exporter // optional
	Logger          *slog.Logger
}

// Service implements API on top of a store.
type Service struct {
	store   storage.Store
	miner   *pattern.Miner
	engine  *suggest.Engine
	purger  *retention.Purger
	metrics *metrics.Exporter
	logger  *slog.Logger
}

var _ API = (*Service)(nil)

// New creates a service. A zero PatternConfig uses pattern.DefaultConfig.
func New(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pcfg := deps.PatternConfig
	if pcfg == (pattern.Config{}) {
		pcfg = pattern.DefaultConfig()
	}

	policy := deps.RetentionPolicy
	if policy == nil {
		policy = retention.DefaultPolicy()
	}
	if policy.Logger == nil {
		p := *policy
		p.Logger = logger
		policy = &p
	}

	return &Service{
		store:   deps.Store,
		miner:   pattern.NewMiner(deps.Store, pcfg, logger),
		engine:  suggest.NewEngine(deps.Store, logger),
		purger:  retention.NewPurger(deps.Store, policy),
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// FromConfig builds a service from the loaded configuration.
func FromConfig(cfg *config.Config, store storage.Store, exporter *metrics.Exporter, logger *slog.Logger) *Service {
	return New(Dependencies{
		Store:         store,
		PatternConfig: PatternConfig(cfg.Patterns),
		RetentionPolicy: &retention.Policy{
			RetentionDays: cfg.Storage.RetentionDays,
			AutoVacuum:    true,
			Logger:        logger,
		},
		Metrics: exporter,
		Logger:  logger,
	})
}

// PatternConfig converts the patterns config section for the miner.
func PatternConfig(c config.PatternsConfig) pattern.Config {
	return pattern.Config{
		MinLength:        c.MinLength,
		MaxLength:        c.MaxLength,
		HistoryWindow:    c.HistoryWindow,
		MinFrequency:     c.MinFrequency,
		Saturation:       c.Saturation,
		RecencyScaleDays: c.RecencyScaleDays,
		FrequencyWeight:  c.FrequencyWeight,
		RecencyWeight:    c.RecencyWeight,
		RecencyFloor:     c.RecencyFloor,
	}
}

// finish records metrics for op and wraps err with the boundary message.
func (s *Service) finish(op string, start time.Time, err error) error {
	s.metrics.ObserveOperation(op, time.Since(start), err)
	if err == nil {
		return nil
	}
	s.logger.Debug("operation failed", "op", op, "error", err)
	return fmt.Errorf("failed to %s: %w", failurePhrases[op], err)
}

func (s *Service) RecordInvocation(ctx context.Context, inv storage.NewInvocation) error {
	start := time.Now()
	return s.finish(OpRecordInvocation, start, s.store.RecordInvocation(ctx, inv))
}

func (s *Service) RecordQuery(ctx context.Context, query string, resultCount int) error {
	start := time.Now()
	return s.finish(OpRecordQuery, start, s.store.RecordQuery(ctx, query, resultCount))
}

func (s *Service) RecordResourceAccess(ctx context.Context, ref storage.ResourceRef) error {
	start := time.Now()
	return s.finish(OpRecordResourceAccess, start, s.store.RecordResourceAccess(ctx, ref))
}

// CleanupOldData purges invocations past the retention window and returns
// the number removed.
func (s *Service) CleanupOldData(ctx context.Context) (int64, error) {
	start := time.Now()
	result, err := s.purger.Purge(ctx)
	if err != nil {
		return 0, s.finish(OpCleanupOldData, start, err)
	}
	s.metrics.AddPurged(result.Deleted)
	return result.Deleted, s.finish(OpCleanupOldData, start, nil)
}

// EstimateCleanup reports how many invocations CleanupOldData would remove.
func (s *Service) EstimateCleanup(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.purger.Estimate(ctx)
	return n, s.finish(OpEstimateCleanup, start, err)
}

func (s *Service) CommandStats(ctx context.Context, commandID string) ([]storage.CommandStats, error) {
	start := time.Now()
	stats, err := s.store.CommandStats(ctx, commandID)
	return stats, s.finish(OpCommandStats, start, err)
}

func (s *Service) TopCommands(ctx context.Context, limit int) ([]storage.CommandStats, error) {
	start := time.Now()
	stats, err := s.store.TopCommands(ctx, limit)
	return stats, s.finish(OpTopCommands, start, err)
}

func (s *Service) RecentQueries(ctx context.Context, limit int) ([]storage.RecentQuery, error) {
	start := time.Now()
	queries, err := s.store.RecentQueries(ctx, limit)
	return queries, s.finish(OpRecentQueries, start, err)
}

func (s *Service) RecentResources(ctx context.Context, limit int, kind string) ([]storage.ResourceSummary, error) {
	start := time.Now()
	resources, err := s.store.RecentResources(ctx, limit, kind)
	return resources, s.finish(OpRecentResources, start, err)
}

func (s *Service) TopResources(ctx context.Context, limit int, kind string) ([]storage.ResourceSummary, error) {
	start := time.Now()
	resources, err := s.store.TopResources(ctx, limit, kind)
	return resources, s.finish(OpTopResources, start, err)
}

func (s *Service) CommandHistory(ctx context.Context, limit int) ([]storage.CommandHistory, error) {
	start := time.Now()
	history, err := s.store.CommandHistory(ctx, limit)
	return history, s.finish(OpCommandHistory, start, err)
}

// DetectPatterns mines and persists patterns of length minLen..maxLen.
func (s *Service) DetectPatterns(ctx context.Context, minLen, maxLen int) ([]storage.CommandPattern, error) {
	start := time.Now()
	patterns, err := s.miner.Detect(ctx, minLen, maxLen)
	if err == nil {
		s.metrics.SetPatterns(len(patterns))
	}
	return patterns, s.finish(OpDetectPatterns, start, err)
}

func (s *Service) GetPatterns(ctx context.Context, minConfidence float64, limit int) ([]storage.CommandPattern, error) {
	start := time.Now()
	patterns, err := s.store.Patterns(ctx, minConfidence, limit)
	return patterns, s.finish(OpGetPatterns, start, err)
}

func (s *Service) GetPatternSuggestions(ctx context.Context, lastCommands []string, limit int) ([]suggest.Suggestion, error) {
	start := time.Now()
	suggestions, err := s.engine.Suggest(ctx, lastCommands, limit)
	return suggestions, s.finish(OpGetPatternSuggestions, start, err)
}
