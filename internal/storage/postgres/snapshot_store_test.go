package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool, "")
	ctx := context.Background()

	exists, err := store.Exists(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	m := &domain.SnapshotMarker{
		Timestamp:       1000,
		URL:             "http://auction-api/snapshot.json",
		AuctionCount:    10,
		ItemCount:       4,
		StatisticsCount: 4,
		BodyDigest:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		CreatedAt:       1700000000000,
	}
	require.NoError(t, store.Insert(ctx, m))
	require.NoError(t, store.Insert(ctx, &domain.SnapshotMarker{Timestamp: 2000, URL: "u2", CreatedAt: 1}))

	exists, err = store.Exists(ctx, 1000)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := store.GetByTimestamp(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), latest.Timestamp)

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2000), list[0].Timestamp)
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool, "")
	ctx := context.Background()

	m := &domain.SnapshotMarker{Timestamp: 1000, URL: "u", CreatedAt: 1}
	require.NoError(t, store.Insert(ctx, m))

	err := store.Insert(ctx, m)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByTimestamp(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
