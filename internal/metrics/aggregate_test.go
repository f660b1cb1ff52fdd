package metrics

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wow-auction-lab/internal/domain"
)

func auction(itemID, bid, buyout, quantity int64) *domain.AuctionRecord {
	return &domain.AuctionRecord{ItemID: itemID, Bid: bid, Buyout: buyout, Quantity: quantity, Timestamp: 1500000000000}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregate_WorkedExample(t *testing.T) {
	result := Aggregate([]*domain.AuctionRecord{
		auction(1, 100, 200, 2),
		auction(1, 50, 50, 1),
	})

	require.Len(t, result.Statistics, 1)
	st := result.Statistics[0]

	assert.Equal(t, int64(1), st.ItemID)
	assert.Equal(t, int64(1500000000000), st.Timestamp)
	assert.True(t, st.Min.Equal(dec("0.005")), "min = %s", st.Min)
	assert.True(t, st.Max.Equal(dec("0.01")), "max = %s", st.Max)
	assert.True(t, st.Average.Equal(dec("0.0075")), "avg = %s", st.Average)
	assert.True(t, st.StdDev.Equal(dec("0.0025")), "std = %s", st.StdDev)
	assert.Equal(t, int64(3), st.Count)
	assert.Empty(t, result.Skipped)
}

func TestAggregate_SingleRecordGroup(t *testing.T) {
	result := Aggregate([]*domain.AuctionRecord{auction(7, 30000, 0, 3)})

	require.Len(t, result.Statistics, 1)
	st := result.Statistics[0]
	assert.True(t, st.Min.Equal(dec("1")))
	assert.True(t, st.Max.Equal(dec("1")))
	assert.True(t, st.Average.Equal(dec("1")))
	assert.True(t, st.StdDev.IsZero())
	assert.Equal(t, int64(3), st.Count)
}

func TestAggregate_BidAboveBuyout(t *testing.T) {
	// A bid can exceed a zero buyout; the larger value is the price.
	result := Aggregate([]*domain.AuctionRecord{auction(3, 500, 0, 1)})

	require.Len(t, result.Statistics, 1)
	assert.True(t, result.Statistics[0].Max.Equal(dec("0.05")))
}

func TestAggregate_GroupsInEncounterOrder(t *testing.T) {
	result := Aggregate([]*domain.AuctionRecord{
		auction(30, 1, 1, 1),
		auction(10, 1, 1, 1),
		auction(30, 1, 1, 1),
		auction(20, 1, 1, 1),
	})

	require.Len(t, result.Statistics, 3)
	assert.Equal(t, int64(30), result.Statistics[0].ItemID)
	assert.Equal(t, int64(10), result.Statistics[1].ItemID)
	assert.Equal(t, int64(20), result.Statistics[2].ItemID)
	assert.Equal(t, int64(2), result.Statistics[0].Count)
}

func TestAggregate_NonPositiveQuantitySkipped(t *testing.T) {
	zero := auction(5, 100, 100, 0)
	negative := auction(5, 100, 100, -2)

	result := Aggregate([]*domain.AuctionRecord{
		zero,
		auction(5, 100, 100, 1),
		negative,
		auction(6, 100, 100, 0),
	})

	require.Len(t, result.Statistics, 1)
	assert.Equal(t, int64(5), result.Statistics[0].ItemID)
	assert.Equal(t, int64(1), result.Statistics[0].Count)
	require.Len(t, result.Skipped, 3)
	assert.Same(t, zero, result.Skipped[0])
	assert.Same(t, negative, result.Skipped[1])
}

func TestAggregate_Empty(t *testing.T) {
	result := Aggregate(nil)
	assert.Empty(t, result.Statistics)
	assert.Empty(t, result.Skipped)
}

func randomRecords(rng *rand.Rand, n int) []*domain.AuctionRecord {
	records := make([]*domain.AuctionRecord, n)
	for i := range records {
		records[i] = auction(
			int64(rng.Intn(8)+1),
			int64(rng.Intn(1_000_000)),
			int64(rng.Intn(2_000_000)),
			int64(rng.Intn(200)+1),
		)
	}
	return records
}

func TestAggregate_OrderingAndSpreadProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		records := randomRecords(rng, rng.Intn(60)+1)
		result := Aggregate(records)

		for _, st := range result.Statistics {
			assert.True(t, st.Min.LessThanOrEqual(st.Average), "item %d: min %s > avg %s", st.ItemID, st.Min, st.Average)
			assert.True(t, st.Average.LessThanOrEqual(st.Max), "item %d: avg %s > max %s", st.ItemID, st.Average, st.Max)
			assert.False(t, st.StdDev.IsNegative(), "item %d: negative std-dev", st.ItemID)
		}
	}
}

func TestAggregate_CountIndependentOfOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := randomRecords(rng, 100)

	want := make(map[int64]int64)
	for _, r := range records {
		want[r.ItemID] += r.Quantity
	}

	for iter := 0; iter < 10; iter++ {
		shuffled := append([]*domain.AuctionRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		result := Aggregate(shuffled)
		require.Len(t, result.Statistics, len(want))
		for _, st := range result.Statistics {
			assert.Equal(t, want[st.ItemID], st.Count, "item %d", st.ItemID)
		}
	}
}
