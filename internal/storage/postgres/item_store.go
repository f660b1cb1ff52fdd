package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// ItemStore implements storage.ItemStore using PostgreSQL.
type ItemStore struct {
	pool  *Pool
	table string
}

// NewItemStore creates a new ItemStore writing to the given table.
func NewItemStore(pool *Pool, table string) *ItemStore {
	if table == "" {
		table = DefaultTables().Items
	}
	return &ItemStore{pool: pool, table: table}
}

// Compile-time interface check.
var _ storage.ItemStore = (*ItemStore)(nil)

func (s *ItemStore) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (item_id, name, raw, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id) DO UPDATE SET
			name = EXCLUDED.name,
			raw = EXCLUDED.raw,
			fetched_at = EXCLUDED.fetched_at
	`, s.table)
}

func rawOrNil(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// Upsert inserts the item or replaces the stored one with the same ItemID.
func (s *ItemStore) Upsert(ctx context.Context, m *domain.ItemMetadata) error {
	if m == nil || m.ItemID <= 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, s.upsertQuery(), m.ItemID, m.Name, rawOrNil(m.Raw), m.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// UpsertBulk upserts multiple items in one batch, applied in order.
func (s *ItemStore) UpsertBulk(ctx context.Context, items []*domain.ItemMetadata) error {
	if len(items) == 0 {
		return nil
	}

	query := s.upsertQuery()
	batch := &pgx.Batch{}
	for _, m := range items {
		if m == nil || m.ItemID <= 0 {
			return storage.ErrInvalidInput
		}
		batch.Queue(query, m.ItemID, m.Name, rawOrNil(m.Raw), m.FetchedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert item in bulk: %w", err)
		}
	}
	return nil
}

// GetByID retrieves an item by id. Returns ErrNotFound if not exists.
func (s *ItemStore) GetByID(ctx context.Context, itemID int64) (*domain.ItemMetadata, error) {
	query := fmt.Sprintf(`SELECT item_id, name, raw, fetched_at FROM %s WHERE item_id = $1`, s.table)

	var m domain.ItemMetadata
	var raw []byte
	err := s.pool.QueryRow(ctx, query, itemID).Scan(&m.ItemID, &m.Name, &raw, &m.FetchedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get item by id: %w", err)
	}
	m.Raw = raw
	return &m, nil
}

// FindMissing returns the ids that have no stored item, in input order without repeats.
func (s *ItemStore) FindMissing(ctx context.Context, itemIDs []int64) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT item_id FROM %s WHERE item_id = ANY($1)`, s.table)

	rows, err := s.pool.Query(ctx, query, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("find stored items: %w", err)
	}
	defer rows.Close()

	stored := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		stored[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item ids: %w", err)
	}

	seen := make(map[int64]struct{}, len(itemIDs))
	var missing []int64
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := stored[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
