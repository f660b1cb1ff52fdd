package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// StatisticsStore implements storage.StatisticsStore using ClickHouse.
// Reads use FINAL so rows replaced by ReplacingMergeTree are collapsed.
type StatisticsStore struct {
	conn *Conn
}

// NewStatisticsStore creates a new StatisticsStore.
func NewStatisticsStore(conn *Conn) *StatisticsStore {
	return &StatisticsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StatisticsStore = (*StatisticsStore)(nil)

// InsertBulk adds multiple rows in one batch. Fails entire batch on any duplicate.
func (s *StatisticsStore) InsertBulk(ctx context.Context, stats []*domain.ItemStatistics) error {
	if len(stats) == 0 {
		return nil
	}

	type key struct{ item, ts int64 }
	seen := make(map[key]struct{}, len(stats))
	timestamps := make(map[int64]struct{})
	for _, st := range stats {
		if st == nil || st.ItemID < 0 || st.Timestamp < 0 || st.Count < 0 {
			return storage.ErrInvalidInput
		}
		k := key{st.ItemID, st.Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		timestamps[st.Timestamp] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, check stored keys first.
	for ts := range timestamps {
		stored, err := s.itemIDs(ctx, ts)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, id := range stored {
			if _, clash := seen[key{id, ts}]; clash {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO item_statistics (
			snapshot_ts, item_id, min_price, max_price, avg_price, stddev_price, quantity
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range stats {
		err = batch.Append(
			uint64(st.Timestamp),
			uint64(st.ItemID),
			st.Min,
			st.Max,
			st.Average,
			st.StdDev,
			uint64(st.Count),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *StatisticsStore) itemIDs(ctx context.Context, timestamp int64) ([]int64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT item_id FROM item_statistics FINAL WHERE snapshot_ts = ?
	`, uint64(timestamp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, int64(id))
	}
	return ids, rows.Err()
}

// CountByTimestamp returns the number of rows stored for a snapshot timestamp.
func (s *StatisticsStore) CountByTimestamp(ctx context.Context, timestamp int64) (int, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM item_statistics FINAL WHERE snapshot_ts = ?
	`, uint64(timestamp)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count statistics: %w", err)
	}
	return int(count), nil
}

// GetByTimestamp retrieves all rows of a snapshot, ordered by item id ASC.
func (s *StatisticsStore) GetByTimestamp(ctx context.Context, timestamp int64) ([]*domain.ItemStatistics, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT snapshot_ts, item_id, min_price, max_price, avg_price, stddev_price, quantity
		FROM item_statistics FINAL
		WHERE snapshot_ts = ?
		ORDER BY item_id ASC
	`, uint64(timestamp))
	if err != nil {
		return nil, fmt.Errorf("query by timestamp: %w", err)
	}
	defer rows.Close()

	return scanStatistics(rows)
}

// GetByItem retrieves the history of one item, ordered by timestamp ASC.
func (s *StatisticsStore) GetByItem(ctx context.Context, itemID int64) ([]*domain.ItemStatistics, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT snapshot_ts, item_id, min_price, max_price, avg_price, stddev_price, quantity
		FROM item_statistics FINAL
		WHERE item_id = ?
		ORDER BY snapshot_ts ASC
	`, uint64(itemID))
	if err != nil {
		return nil, fmt.Errorf("query by item: %w", err)
	}
	defer rows.Close()

	return scanStatistics(rows)
}

func scanStatistics(rows driver.Rows) ([]*domain.ItemStatistics, error) {
	var result []*domain.ItemStatistics
	for rows.Next() {
		var (
			ts, item, qty          uint64
			minP, maxP, avgP, stdP decimal.Decimal
		)
		if err := rows.Scan(&ts, &item, &minP, &maxP, &avgP, &stdP, &qty); err != nil {
			return nil, fmt.Errorf("scan statistics: %w", err)
		}
		result = append(result, &domain.ItemStatistics{
			ItemID:    int64(item),
			Timestamp: int64(ts),
			Min:       minP,
			Max:       maxP,
			Average:   avgP,
			StdDev:    stdP,
			Count:     int64(qty),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statistics: %w", err)
	}
	return result, nil
}
