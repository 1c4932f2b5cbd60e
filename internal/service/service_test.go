package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/cmdlens/internal/config"
	"github.com/runger/cmdlens/internal/metrics"
	"github.com/runger/cmdlens/internal/pattern"
	"github.com/runger/cmdlens/internal/storage"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*Service, *clock, *metrics.Exporter) {
	t.Helper()

	clk := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store, err := storage.Open(context.Background(), storage.Options{
		Path: filepath.Join(t.TempDir(), "cmdlens.db"),
		Now:  clk.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exporter := metrics.New(metrics.DefaultConfig())
	return FromConfig(config.DefaultConfig(), store, exporter, nil), clk, exporter
}

func runCommands(t *testing.T, svc *Service, clk *clock, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, svc.RecordInvocation(context.Background(), storage.NewInvocation{CommandID: id, Success: true}))
		clk.advance(10 * time.Second)
	}
}

func gaugeValue(t *testing.T, exporter *metrics.Exporter, name string) float64 {
	t.Helper()
	families, err := exporter.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestService_DetectAndSuggest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, clk, exporter := newTestService(t)

	runCommands(t, svc, clk, "git.status", "git.add", "git.commit", "git.status", "git.add", "git.commit")

	patterns, err := svc.DetectPatterns(ctx, 2, 3)
	require.NoError(t, err)
	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		ids = append(ids, p.PatternID)
	}
	assert.ElementsMatch(t, []string{
		"git.status -> git.add",
		"git.add -> git.commit",
		"git.status -> git.add -> git.commit",
	}, ids)
	assert.Equal(t, 3.0, gaugeValue(t, exporter, "cmdlens_detected_patterns"))

	stored, err := svc.GetPatterns(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	suggestions, err := svc.GetPatternSuggestions(ctx, []string{"git.status", "git.add"}, 5)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "git.commit", suggestions[0].NextCommand)
	assert.EqualValues(t, 2, suggestions[0].PatternFrequency)
}

func TestService_CleanupOldData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, clk, _ := newTestService(t)

	runCommands(t, svc, clk, "old.one", "old.two")
	clk.advance(91 * 24 * time.Hour)
	runCommands(t, svc, clk, "fresh")

	estimate, err := svc.EstimateCleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, estimate)

	deleted, err := svc.CleanupOldData(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	deleted, err = svc.CleanupOldData(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	history, err := svc.CommandHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fresh", history[0].CommandID)
}

func TestService_RecordersAndAggregates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, clk, _ := newTestService(t)

	require.NoError(t, svc.RecordQuery(ctx, "pods", 3))
	ns := "default"
	ref := storage.ResourceRef{Kind: "pod", Name: "web-1", Namespace: &ns}
	require.NoError(t, svc.RecordResourceAccess(ctx, ref))
	clk.advance(time.Minute)
	require.NoError(t, svc.RecordResourceAccess(ctx, ref))
	runCommands(t, svc, clk, "kubectl.get", "kubectl.get")

	queries, err := svc.RecentQueries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "pods", queries[0].Query)

	recent, err := svc.RecentResources(ctx, 10, "pod")
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.EqualValues(t, 2, recent[0].AccessCount)

	top, err := svc.TopResources(ctx, 10, "")
	require.NoError(t, err)
	assert.Len(t, top, 1)

	stats, err := svc.CommandStats(ctx, "kubectl.get")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.EqualValues(t, 2, stats[0].HitCount)

	topCommands, err := svc.TopCommands(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, topCommands, 1)
}

func TestService_ErrorsCarryOperation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.TopCommands(ctx, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "failed to get top commands: ")

	_, err = svc.GetPatternSuggestions(ctx, []string{"a"}, -1)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "failed to get pattern suggestions: ")

	err = svc.RecordInvocation(ctx, storage.NewInvocation{})
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	svc := New(Dependencies{})
	assert.Equal(t, pattern.DefaultConfig(), svc.miner.Config())
}
