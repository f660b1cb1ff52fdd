package storage

import (
	"context"

	"wow-auction-lab/internal/domain"
)

// SnapshotStore persists markers of fully resolved snapshots.
// A marker is the idempotency key of the ingestion pipeline: a timestamp
// with a marker is never processed again by a pull_new run.
type SnapshotStore interface {
	// Insert adds a marker. Returns ErrDuplicateKey if the timestamp exists.
	Insert(ctx context.Context, m *domain.SnapshotMarker) error

	// Exists reports whether a marker is stored for the timestamp.
	Exists(ctx context.Context, timestamp int64) (bool, error)

	// GetByTimestamp retrieves a marker. Returns ErrNotFound if not exists.
	GetByTimestamp(ctx context.Context, timestamp int64) (*domain.SnapshotMarker, error)

	// GetLatest returns the marker with the greatest timestamp.
	// Returns ErrNotFound if no snapshot has been resolved yet.
	GetLatest(ctx context.Context) (*domain.SnapshotMarker, error)

	// List returns up to limit markers, newest first.
	List(ctx context.Context, limit int) ([]*domain.SnapshotMarker, error)
}
