package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool  *Pool
	table string
}

// NewSnapshotStore creates a new SnapshotStore writing to the given table.
func NewSnapshotStore(pool *Pool, table string) *SnapshotStore {
	if table == "" {
		table = DefaultTables().Snapshots
	}
	return &SnapshotStore{pool: pool, table: table}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a marker. Returns ErrDuplicateKey if the timestamp exists.
func (s *SnapshotStore) Insert(ctx context.Context, m *domain.SnapshotMarker) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			snapshot_ts, url, auction_count, item_count, statistics_count, body_digest, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.table)

	_, err := s.pool.Exec(ctx, query,
		m.Timestamp,
		m.URL,
		m.AuctionCount,
		m.ItemCount,
		m.StatisticsCount,
		m.BodyDigest,
		m.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot marker: %w", err)
	}
	return nil
}

// Exists reports whether a marker is stored for the timestamp.
func (s *SnapshotStore) Exists(ctx context.Context, timestamp int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE snapshot_ts = $1)`, s.table)

	var exists bool
	if err := s.pool.QueryRow(ctx, query, timestamp).Scan(&exists); err != nil {
		return false, fmt.Errorf("check snapshot marker: %w", err)
	}
	return exists, nil
}

// GetByTimestamp retrieves a marker. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByTimestamp(ctx context.Context, timestamp int64) (*domain.SnapshotMarker, error) {
	query := fmt.Sprintf(`
		SELECT snapshot_ts, url, auction_count, item_count, statistics_count, body_digest, created_at
		FROM %s
		WHERE snapshot_ts = $1
	`, s.table)

	m, err := scanMarker(s.pool.QueryRow(ctx, query, timestamp))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot marker: %w", err)
	}
	return m, nil
}

// GetLatest returns the marker with the greatest timestamp.
func (s *SnapshotStore) GetLatest(ctx context.Context) (*domain.SnapshotMarker, error) {
	query := fmt.Sprintf(`
		SELECT snapshot_ts, url, auction_count, item_count, statistics_count, body_digest, created_at
		FROM %s
		ORDER BY snapshot_ts DESC
		LIMIT 1
	`, s.table)

	m, err := scanMarker(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot marker: %w", err)
	}
	return m, nil
}

// List returns up to limit markers, newest first.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]*domain.SnapshotMarker, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT snapshot_ts, url, auction_count, item_count, statistics_count, body_digest, created_at
		FROM %s
		ORDER BY snapshot_ts DESC
		LIMIT $1
	`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshot markers: %w", err)
	}
	defer rows.Close()

	var result []*domain.SnapshotMarker
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot marker: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot markers: %w", err)
	}
	return result, nil
}

func scanMarker(row pgx.Row) (*domain.SnapshotMarker, error) {
	var m domain.SnapshotMarker
	err := row.Scan(
		&m.Timestamp,
		&m.URL,
		&m.AuctionCount,
		&m.ItemCount,
		&m.StatisticsCount,
		&m.BodyDigest,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
