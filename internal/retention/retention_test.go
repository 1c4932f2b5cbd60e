package retention

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/cmdlens/internal/storage"
)

func TestNewPurger_ClampsRetention(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultRetentionDays, NewPurger(nil, nil).RetentionDays())
	assert.Equal(t, MinRetentionDays, NewPurger(nil, &Policy{RetentionDays: 0}).RetentionDays())
	assert.Equal(t, MaxRetentionDays, NewPurger(nil, &Policy{RetentionDays: 99999}).RetentionDays())
}

func TestPurger_PurgeDeletesOnlyExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store, err := storage.Open(ctx, storage.Options{
		Path: filepath.Join(t.TempDir(), "retention.db"),
		Now:  func() time.Time { return now },
	})
	require.NoError(t, err)
	defer store.Close()

	record := func(id string) {
		require.NoError(t, store.RecordInvocation(ctx, storage.NewInvocation{CommandID: id, Success: true}))
	}

	record("ancient")
	now = now.Add(3 * 24 * time.Hour)
	record("old")
	now = now.Add(2 * 24 * time.Hour)
	record("edge")
	now = now.Add(89 * 24 * time.Hour)
	record("recent")

	purger := NewPurger(store, DefaultPolicy())

	estimate, err := purger.Estimate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, estimate, "91 and 94 days old")

	result, err := purger.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Deleted)
	assert.False(t, result.Vacuumed)
	assert.Equal(t, now.Add(-90*24*time.Hour), result.Cutoff)

	result, err = purger.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Deleted)

	history, err := store.CommandHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "recent", history[0].CommandID)
	assert.Equal(t, "edge", history[1].CommandID, "89 days old")
}

type fakeStore struct {
	now      time.Time
	deleted  int64
	err      error
	vacuumed bool
	cutoff   time.Time
}

func (f *fakeStore) PurgeInvocationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func (f *fakeStore) CountInvocationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func (f *fakeStore) Vacuum(context.Context) error {
	f.vacuumed = true
	return nil
}

func (f *fakeStore) Now() time.Time { return f.now }

func TestPurger_VacuumsAfterLargePurge(t *testing.T) {
	t.Parallel()

	store := &fakeStore{now: time.Now(), deleted: VacuumThreshold}
	result, err := NewPurger(store, &Policy{RetentionDays: 30, AutoVacuum: true}).Purge(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Vacuumed)
	assert.True(t, store.vacuumed)
	assert.Equal(t, store.now.Add(-30*24*time.Hour), store.cutoff)
}

func TestPurger_NoVacuumWhenDisabled(t *testing.T) {
	t.Parallel()

	store := &fakeStore{now: time.Now(), deleted: VacuumThreshold * 2}
	result, err := NewPurger(store, &Policy{RetentionDays: 30}).Purge(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Vacuumed)
	assert.False(t, store.vacuumed)
}

func TestPurger_PropagatesStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	_, err := NewPurger(&fakeStore{err: boom}, nil).Purge(context.Background())
	assert.ErrorIs(t, err, boom)
}
