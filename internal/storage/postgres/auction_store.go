package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// AuctionStore implements storage.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool  *Pool
	table string
}

// NewAuctionStore creates a new AuctionStore writing to the given table.
func NewAuctionStore(pool *Pool, table string) *AuctionStore {
	if table == "" {
		table = DefaultTables().Auctions
	}
	return &AuctionStore{pool: pool, table: table}
}

// Compile-time interface check.
var _ storage.AuctionStore = (*AuctionStore)(nil)

var auctionColumns = []string{
	"snapshot_ts", "auction_id", "item_id", "owner", "owner_realm",
	"bid", "buyout", "quantity", "time_left", "raw",
}

// InsertBulk copies all records in one COPY round trip.
func (s *AuctionStore) InsertBulk(ctx context.Context, records []*domain.AuctionRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
		var raw []byte
		if len(r.Raw) > 0 {
			raw = []byte(r.Raw)
		}
		rows = append(rows, []any{
			r.Timestamp, r.AuctionID, r.ItemID, r.Owner, r.OwnerRealm,
			r.Bid, r.Buyout, r.Quantity, r.TimeLeft, raw,
		})
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.table}, auctionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy auctions: %w", err)
	}
	return nil
}

// CountByTimestamp returns the number of records stored for a snapshot timestamp.
func (s *AuctionStore) CountByTimestamp(ctx context.Context, timestamp int64) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE snapshot_ts = $1`, s.table)

	var count int
	if err := s.pool.QueryRow(ctx, query, timestamp).Scan(&count); err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return count, nil
}

// GetByTimestamp retrieves all records of a snapshot, ordered by auction id ASC.
func (s *AuctionStore) GetByTimestamp(ctx context.Context, timestamp int64) ([]*domain.AuctionRecord, error) {
	query := fmt.Sprintf(`
		SELECT snapshot_ts, auction_id, item_id, owner, owner_realm,
			bid, buyout, quantity, time_left, raw
		FROM %s
		WHERE snapshot_ts = $1
		ORDER BY auction_id ASC, id ASC
	`, s.table)

	rows, err := s.pool.Query(ctx, query, timestamp)
	if err != nil {
		return nil, fmt.Errorf("get auctions by timestamp: %w", err)
	}
	defer rows.Close()

	var result []*domain.AuctionRecord
	for rows.Next() {
		var r domain.AuctionRecord
		var raw []byte
		err := rows.Scan(
			&r.Timestamp, &r.AuctionID, &r.ItemID, &r.Owner, &r.OwnerRealm,
			&r.Bid, &r.Buyout, &r.Quantity, &r.TimeLeft, &raw,
		)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		r.Raw = raw
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}
	return result, nil
}
