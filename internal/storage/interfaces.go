package storage

import (
	"context"

	"github.com/google/uuid"

	"wow-auction-lab/internal/domain"
)

// AuctionStore provides access to auctions storage.
// Records of one snapshot are written once and never updated.
type AuctionStore interface {
	// InsertBulk adds multiple records in one unordered batch.
	InsertBulk(ctx context.Context, records []*domain.AuctionRecord) error

	// CountByTimestamp returns the number of records stored for a snapshot timestamp.
	CountByTimestamp(ctx context.Context, timestamp int64) (int, error)

	// GetByTimestamp retrieves all records of a snapshot, ordered by auction id ASC.
	GetByTimestamp(ctx context.Context, timestamp int64) ([]*domain.AuctionRecord, error)
}

// ItemStore provides access to items storage.
type ItemStore interface {
	// Upsert inserts the item or replaces the stored one with the same ItemID.
	Upsert(ctx context.Context, m *domain.ItemMetadata) error

	// UpsertBulk upserts multiple items. Later entries win on repeated ids.
	UpsertBulk(ctx context.Context, items []*domain.ItemMetadata) error

	// GetByID retrieves an item by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, itemID int64) (*domain.ItemMetadata, error)

	// FindMissing returns the ids from itemIDs that have no stored item,
	// preserving input order and dropping repeats.
	FindMissing(ctx context.Context, itemIDs []int64) ([]int64, error)
}

// StatisticsStore provides access to item_statistics storage.
type StatisticsStore interface {
	// InsertBulk adds multiple rows. Returns ErrDuplicateKey if any
	// (item_id, timestamp) pair already exists or repeats within the batch.
	InsertBulk(ctx context.Context, stats []*domain.ItemStatistics) error

	// CountByTimestamp returns the number of rows stored for a snapshot timestamp.
	CountByTimestamp(ctx context.Context, timestamp int64) (int, error)

	// GetByTimestamp retrieves all rows of a snapshot, ordered by item id ASC.
	GetByTimestamp(ctx context.Context, timestamp int64) ([]*domain.ItemStatistics, error)

	// GetByItem retrieves the history of one item, ordered by timestamp ASC.
	GetByItem(ctx context.Context, itemID int64) ([]*domain.ItemStatistics, error)
}

// RunStore provides access to the ingestion run ledger.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *domain.IngestRun) error

	// Update replaces a stored run. Returns ErrNotFound if not exists.
	Update(ctx context.Context, r *domain.IngestRun) error

	// GetByID retrieves a run by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.IngestRun, error)

	// ListRecent returns up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.IngestRun, error)
}
