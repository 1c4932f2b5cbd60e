package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

func record(t *testing.T, s *SQLiteStore, clock *testClock, id string, execMs *int64, success bool) {
	t.Helper()
	clock.Advance(time.Second)
	require.NoError(t, s.RecordInvocation(context.Background(), NewInvocation{
		CommandID:       id,
		ExecutionTimeMs: execMs,
		Success:         success,
	}))
}

func TestCommandStats_ExcludesFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	record(t, store, clock, "a", int64Ptr(100), true)
	record(t, store, clock, "a", int64Ptr(200), true)
	record(t, store, clock, "a", int64Ptr(900), false)
	lastA := FormatTime(clock.Now().Add(-time.Second))

	stats, err := store.CommandStats(ctx, "a")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "a", stats[0].CommandID)
	assert.EqualValues(t, 2, stats[0].HitCount)
	assert.Equal(t, lastA, stats[0].LastUsed)
	require.NotNil(t, stats[0].AvgExecutionTime)
	assert.InDelta(t, 150.0, *stats[0].AvgExecutionTime, 1e-9)
}

func TestCommandStats_NoExecutionTimes(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(t)
	record(t, store, clock, "b", nil, true)

	stats, err := store.CommandStats(context.Background(), "b")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Nil(t, stats[0].AvgExecutionTime)
}

func TestCommandStats_UnknownAndAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	stats, err := store.CommandStats(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, stats)

	record(t, store, clock, "x", nil, true)
	record(t, store, clock, "y", nil, true)
	record(t, store, clock, "y", nil, true)

	stats, err = store.CommandStats(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, stats)

	stats, err = store.CommandStats(ctx, "")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "y", stats[0].CommandID)
	assert.Equal(t, "x", stats[1].CommandID)
}

func TestCommandStats_ParameterizedID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	id := "it's'; DROP TABLE command_invocations; --"
	record(t, store, clock, id, nil, true)

	stats, err := store.CommandStats(ctx, id)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, id, stats[0].CommandID)
}

func TestTopCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	for i := 0; i < 3; i++ {
		record(t, store, clock, "a", nil, true)
	}
	record(t, store, clock, "b", nil, true)
	for i := 0; i < 5; i++ {
		record(t, store, clock, "c", nil, false)
	}

	top, err := store.TopCommands(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "a", top[0].CommandID)
	assert.EqualValues(t, 3, top[0].HitCount)

	top, err = store.TopCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2, "failed-only commands never appear")

	top, err = store.TopCommands(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)

	_, err = store.TopCommands(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRecordInvocation_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestStore(t)

	assert.ErrorIs(t, store.RecordInvocation(ctx, NewInvocation{}), ErrInvalidArgument)
	assert.ErrorIs(t, store.RecordInvocation(ctx, NewInvocation{CommandID: "a", ExecutionTimeMs: int64Ptr(-1)}), ErrInvalidArgument)
	assert.ErrorIs(t, store.RecordInvocation(ctx, NewInvocation{CommandID: "a -> b", Success: true}), ErrInvalidArgument)
	assert.NoError(t, store.RecordInvocation(ctx, NewInvocation{CommandID: "a->b", Success: true}))
	assert.NoError(t, store.RecordInvocation(ctx, NewInvocation{
		CommandID:    "a",
		Success:      false,
		ErrorMessage: strPtr("boom"),
		Context:      strPtr(`{"cluster":"dev"}`),
	}))
}

func TestCommandHistory_NewestFirstSuccessOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	record(t, store, clock, "first", int64Ptr(5), true)
	record(t, store, clock, "failed", nil, false)
	record(t, store, clock, "second", nil, true)

	history, err := store.CommandHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].CommandID)
	assert.Equal(t, "first", history[1].CommandID)
	assert.True(t, history[1].Success)
	require.NotNil(t, history[1].ExecutionTimeMs)
	assert.EqualValues(t, 5, *history[1].ExecutionTimeMs)
	assert.Nil(t, history[0].ExecutionTimeMs)

	history, err = store.CommandHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "second", history[0].CommandID)

	_, err = store.CommandHistory(ctx, -5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPurgeInvocationsBefore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	record(t, store, clock, "old", nil, true)
	record(t, store, clock, "old", nil, false)
	clock.Advance(100 * 24 * time.Hour)
	record(t, store, clock, "new", nil, true)

	cutoff := clock.Now().Add(-90 * 24 * time.Hour)

	n, err := store.CountInvocationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	deleted, err := store.PurgeInvocationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	deleted, err = store.PurgeInvocationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, deleted, "purge is idempotent")

	history, err := store.CommandHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "new", history[0].CommandID)
}
