// Package retention purges command invocations older than the retention
// window. Query and resource tables are capped on write by the store and
// need no sweep.
package retention

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultRetentionDays is the default age limit for command invocations.
	DefaultRetentionDays = 90

	// MinRetentionDays is the minimum allowed retention period.
	MinRetentionDays = 1

	// MaxRetentionDays is the maximum allowed retention period (10 years).
	MaxRetentionDays = 3650

	// VacuumThreshold is the number of deleted rows that triggers a vacuum.
	VacuumThreshold = 10000
)

// Store is the subset of the event store the purger needs.
type Store interface {
	PurgeInvocationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountInvocationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Vacuum(ctx context.Context) error
	Now() time.Time
}

// Policy defines the retention policy for stored data.
type Policy struct {
	Logger        *slog.Logger
	RetentionDays int
	AutoVacuum    bool
}

// DefaultPolicy returns the default retention policy.
func DefaultPolicy() *Policy {
	return &Policy{
		RetentionDays: DefaultRetentionDays,
		AutoVacuum:    true,
		Logger:        slog.Default(),
	}
}

// Purger handles data retention and purge operations.
type Purger struct {
	store  Store
	policy Policy
}

// NewPurger creates a purger. A nil policy uses DefaultPolicy; the
// retention period is clamped to [MinRetentionDays, MaxRetentionDays].
func NewPurger(store Store, policy *Policy) *Purger {
	if policy == nil {
		policy = DefaultPolicy()
	}
	p := *policy

	if p.RetentionDays < MinRetentionDays {
		p.RetentionDays = MinRetentionDays
	}
	if p.RetentionDays > MaxRetentionDays {
		p.RetentionDays = MaxRetentionDays
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	return &Purger{store: store, policy: p}
}

// PurgeResult contains the results of a purge operation.
type PurgeResult struct {
	// Deleted is the number of invocation rows removed.
	Deleted int64

	// Cutoff is the instant before which rows were removed.
	Cutoff time.Time

	// Vacuumed indicates whether a vacuum was performed.
	Vacuumed bool

	// Duration is how long the purge took.
	Duration time.Duration
}

// RetentionDays returns the effective retention period.
func (p *Purger) RetentionDays() int {
	return p.policy.RetentionDays
}

// Cutoff returns the purge boundary relative to the store clock.
func (p *Purger) Cutoff() time.Time {
	return p.store.Now().Add(-time.Duration(p.policy.RetentionDays) * 24 * time.Hour)
}

// Purge deletes invocations older than the retention period. Running it
// with nothing eligible is a no-op.
func (p *Purger) Purge(ctx context.Context) (*PurgeResult, error) {
	start := time.Now()
	result := &PurgeResult{Cutoff: p.Cutoff()}

	p.policy.Logger.Debug("starting purge",
		"retention_days", p.policy.RetentionDays,
		"cutoff", result.Cutoff,
	)

	deleted, err := p.store.PurgeInvocationsBefore(ctx, result.Cutoff)
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted

	if p.policy.AutoVacuum && deleted >= VacuumThreshold {
		p.policy.Logger.Debug("running vacuum after large purge", "deleted", deleted)
		if err := p.store.Vacuum(ctx); err != nil {
			p.policy.Logger.Warn("vacuum failed", "error", err)
		} else {
			result.Vacuumed = true
		}
	}

	result.Duration = time.Since(start)

	p.policy.Logger.Info("cleaned up old command invocations",
		"deleted", result.Deleted,
		"vacuumed", result.Vacuumed,
		"duration", result.Duration,
	)
	return result, nil
}

// Estimate reports how many invocations Purge would delete right now.
func (p *Purger) Estimate(ctx context.Context) (int64, error) {
	return p.store.CountInvocationsBefore(ctx, p.Cutoff())
}
