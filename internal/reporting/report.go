package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the statistics of one resolved snapshot, one row per item.
type Report struct {
	GeneratedAt time.Time
	Realm       string

	// Snapshot
	SnapshotTimestamp int64 // Unix ms
	SnapshotURL       string
	AuctionCount      int

	// Summary
	ItemCount     int
	TotalQuantity int64
	UnnamedItems  int // items without stored metadata

	// Rows sorted by item id
	Rows []StatisticsRow
}

// StatisticsRow is one item's price statistics in display units.
type StatisticsRow struct {
	ItemID  int64
	Name    string // empty when metadata was never fetched
	Min     decimal.Decimal
	Max     decimal.Decimal
	Average decimal.Decimal
	StdDev  decimal.Decimal
	Count   int64
}
