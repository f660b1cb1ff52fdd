package ingestion

import (
	"context"
	"encoding/json"

	"wow-auction-lab/internal/feed"
)

// IndexSource lists the snapshots published for a realm.
type IndexSource interface {
	GetIndex(ctx context.Context) (*feed.Index, error)
}

// SnapshotSource downloads a snapshot body verbatim.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, url string) ([]byte, error)
}

// ItemSource fetches one item document.
// Must return an error wrapping ErrItemNotFound for unknown ids.
type ItemSource interface {
	GetItem(ctx context.Context, itemID int64) (json.RawMessage, error)
}

// Compile-time checks that the feed client serves every source.
var (
	_ IndexSource    = (*feed.Client)(nil)
	_ SnapshotSource = (*feed.Client)(nil)
	_ ItemSource     = (*feed.Client)(nil)
)
