package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// StatisticsStore implements storage.StatisticsStore using PostgreSQL.
// Prices are numeric columns; values cross the wire as text.
type StatisticsStore struct {
	pool  *Pool
	table string
}

// NewStatisticsStore creates a new StatisticsStore writing to the given table.
func NewStatisticsStore(pool *Pool, table string) *StatisticsStore {
	if table == "" {
		table = DefaultTables().Statistics
	}
	return &StatisticsStore{pool: pool, table: table}
}

// Compile-time interface check.
var _ storage.StatisticsStore = (*StatisticsStore)(nil)

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *StatisticsStore) InsertBulk(ctx context.Context, stats []*domain.ItemStatistics) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			item_id, snapshot_ts, min_price, max_price, avg_price, stddev_price, quantity
		) VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7)
	`, s.table)

	for _, st := range stats {
		if st == nil {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			st.ItemID,
			st.Timestamp,
			st.Min.String(),
			st.Max.String(),
			st.Average.String(),
			st.StdDev.String(),
			st.Count,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert statistics in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CountByTimestamp returns the number of rows stored for a snapshot timestamp.
func (s *StatisticsStore) CountByTimestamp(ctx context.Context, timestamp int64) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE snapshot_ts = $1`, s.table)

	var count int
	if err := s.pool.QueryRow(ctx, query, timestamp).Scan(&count); err != nil {
		return 0, fmt.Errorf("count statistics: %w", err)
	}
	return count, nil
}

// GetByTimestamp retrieves all rows of a snapshot, ordered by item id ASC.
func (s *StatisticsStore) GetByTimestamp(ctx context.Context, timestamp int64) ([]*domain.ItemStatistics, error) {
	query := fmt.Sprintf(`
		SELECT item_id, snapshot_ts, min_price::text, max_price::text, avg_price::text, stddev_price::text, quantity
		FROM %s
		WHERE snapshot_ts = $1
		ORDER BY item_id ASC
	`, s.table)

	rows, err := s.pool.Query(ctx, query, timestamp)
	if err != nil {
		return nil, fmt.Errorf("get statistics by timestamp: %w", err)
	}
	defer rows.Close()

	return scanStatistics(rows)
}

// GetByItem retrieves the history of one item, ordered by timestamp ASC.
func (s *StatisticsStore) GetByItem(ctx context.Context, itemID int64) ([]*domain.ItemStatistics, error) {
	query := fmt.Sprintf(`
		SELECT item_id, snapshot_ts, min_price::text, max_price::text, avg_price::text, stddev_price::text, quantity
		FROM %s
		WHERE item_id = $1
		ORDER BY snapshot_ts ASC
	`, s.table)

	rows, err := s.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("get statistics by item: %w", err)
	}
	defer rows.Close()

	return scanStatistics(rows)
}

func scanStatistics(rows pgx.Rows) ([]*domain.ItemStatistics, error) {
	var result []*domain.ItemStatistics
	for rows.Next() {
		var st domain.ItemStatistics
		var minStr, maxStr, avgStr, stdStr string
		err := rows.Scan(&st.ItemID, &st.Timestamp, &minStr, &maxStr, &avgStr, &stdStr, &st.Count)
		if err != nil {
			return nil, fmt.Errorf("scan statistics: %w", err)
		}

		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&st.Min, minStr},
			{&st.Max, maxStr},
			{&st.Average, avgStr},
			{&st.StdDev, stdStr},
		} {
			d, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, fmt.Errorf("parse numeric %q: %w", f.src, err)
			}
			*f.dst = d
		}

		result = append(result, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statistics: %w", err)
	}
	return result, nil
}
