package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordResourceAccess_UpsertsWithNullKeyParts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	ref := ResourceRef{Kind: "pod", Name: "web-0"}
	require.NoError(t, store.RecordResourceAccess(ctx, ref))
	clock.Advance(time.Minute)
	require.NoError(t, store.RecordResourceAccess(ctx, ref))

	resources, err := store.RecentResources(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.EqualValues(t, 2, resources[0].AccessCount)
	assert.Equal(t, FormatTime(clock.Now()), resources[0].LastAccessed)
	assert.Nil(t, resources[0].Namespace)
	assert.Nil(t, resources[0].Context)
}

func TestRecordResourceAccess_KeyPartsDistinguishRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	refs := []ResourceRef{
		{Kind: "pod", Name: "web-0"},
		{Kind: "pod", Name: "web-0", Namespace: strPtr("default")},
		{Kind: "pod", Name: "web-0", Namespace: strPtr("default"), Context: strPtr("prod")},
		{Kind: "service", Name: "web-0", Namespace: strPtr("default")},
	}
	for _, ref := range refs {
		clock.Advance(time.Second)
		require.NoError(t, store.RecordResourceAccess(ctx, ref))
	}
	clock.Advance(time.Second)
	require.NoError(t, store.RecordResourceAccess(ctx, refs[1]))

	resources, err := store.RecentResources(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, resources, 4)
	assert.Equal(t, "default", *resources[0].Namespace)
	assert.Nil(t, resources[0].Context)
	assert.EqualValues(t, 2, resources[0].AccessCount)

	pods, err := store.RecentResources(ctx, 10, "pod")
	require.NoError(t, err)
	assert.Len(t, pods, 3)
}

func TestTopResources_OrdersByCountThenRecency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStore(t)

	access := func(name string, times int) {
		for i := 0; i < times; i++ {
			clock.Advance(time.Second)
			require.NoError(t, store.RecordResourceAccess(ctx, ResourceRef{Kind: "pod", Name: name}))
		}
	}
	access("a", 1)
	access("b", 3)
	access("c", 1)
	require.NoError(t, store.RecordResourceAccess(ctx, ResourceRef{Kind: "node", Name: "n1"}))

	top, err := store.TopResources(ctx, 10, "pod")
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Name)
	assert.Equal(t, "c", top[1].Name, "ties prefer the more recent access")
	assert.Equal(t, "a", top[2].Name)

	top, err = store.TopResources(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "b", top[0].Name)
}

func TestRecordResourceAccess_RetentionCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, clock := newTestStoreWith(t, Options{ResourceCap: 5})

	for i := 0; i < 8; i++ {
		clock.Advance(time.Second)
		require.NoError(t, store.RecordResourceAccess(ctx, ResourceRef{Kind: "pod", Name: fmt.Sprintf("p%d", i)}))
	}

	resources, err := store.RecentResources(ctx, 100, "")
	require.NoError(t, err)
	require.Len(t, resources, 5)
	assert.Equal(t, "p7", resources[0].Name)
	assert.Equal(t, "p3", resources[4].Name)
}

func TestRecordResourceAccess_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestStore(t)

	assert.ErrorIs(t, store.RecordResourceAccess(ctx, ResourceRef{Name: "x"}), ErrInvalidArgument)
	assert.ErrorIs(t, store.RecordResourceAccess(ctx, ResourceRef{Kind: "pod"}), ErrInvalidArgument)

	_, err := store.TopResources(ctx, -1, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
