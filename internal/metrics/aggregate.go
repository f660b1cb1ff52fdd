package metrics

import (
	"github.com/shopspring/decimal"

	"wow-auction-lab/internal/domain"
)

// DisplayScale is the number of decimal places kept for display-unit prices.
const DisplayScale = 8

var copperPerGold = decimal.NewFromInt(domain.CopperPerGold)

// AggregateResult holds the output of Aggregate.
type AggregateResult struct {
	// Statistics has one entry per item id, in order of first appearance.
	Statistics []*domain.ItemStatistics

	// Skipped lists records excluded for a non-positive quantity.
	Skipped []*domain.AuctionRecord
}

type group struct {
	itemID    int64
	timestamp int64
	prices    []float64
	quantity  int64
}

// Aggregate groups records by item id and computes per-item price statistics.
// Unit price is max(bid, buyout) / quantity. Records with quantity <= 0 carry
// no unit price and are returned in Skipped instead of contributing.
// Aggregate is pure; the input slice is not modified.
func Aggregate(records []*domain.AuctionRecord) *AggregateResult {
	result := &AggregateResult{}

	index := make(map[int64]int)
	var groups []*group

	for _, r := range records {
		if r == nil {
			continue
		}
		price, ok := r.UnitPrice()
		if !ok {
			result.Skipped = append(result.Skipped, r)
			continue
		}

		i, exists := index[r.ItemID]
		if !exists {
			i = len(groups)
			index[r.ItemID] = i
			groups = append(groups, &group{itemID: r.ItemID, timestamp: r.Timestamp})
		}
		g := groups[i]
		g.prices = append(g.prices, price)
		g.quantity += r.Quantity
	}

	result.Statistics = make([]*domain.ItemStatistics, 0, len(groups))
	for _, g := range groups {
		result.Statistics = append(result.Statistics, computeGroup(g))
	}
	return result
}

func computeGroup(g *group) *domain.ItemStatistics {
	mean := computeMean(g.prices)
	return &domain.ItemStatistics{
		ItemID:    g.itemID,
		Timestamp: g.timestamp,
		Min:       toDisplay(computeMin(g.prices)),
		Max:       toDisplay(computeMax(g.prices)),
		Average:   toDisplay(mean),
		StdDev:    toDisplay(computeStddev(g.prices, mean)),
		Count:     g.quantity,
	}
}

// toDisplay converts a copper amount into display units.
func toDisplay(copper float64) decimal.Decimal {
	return decimal.NewFromFloat(copper).Div(copperPerGold).Round(DisplayScale)
}
