package domain

import "github.com/shopspring/decimal"

// ItemStatistics holds price statistics of one item within one snapshot.
// Corresponds to item_statistics table. Prices are in display units
// (copper / CopperPerGold).
type ItemStatistics struct {
	ItemID    int64           // item id
	Timestamp int64           // snapshot timestamp (ms)
	Min       decimal.Decimal // lowest unit price
	Max       decimal.Decimal // highest unit price
	Average   decimal.Decimal // mean unit price
	StdDev    decimal.Decimal // population standard deviation of unit price
	Count     int64           // total quantity listed
}
