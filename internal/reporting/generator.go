package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	snapshotStore   storage.SnapshotStore
	statisticsStore storage.StatisticsStore
	itemStore       storage.ItemStore
	realm           string
	now             func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	snapshotStore storage.SnapshotStore,
	statisticsStore storage.StatisticsStore,
	itemStore storage.ItemStore,
	realm string,
) *Generator {
	return &Generator{
		snapshotStore:   snapshotStore,
		statisticsStore: statisticsStore,
		itemStore:       itemStore,
		realm:           realm,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for the snapshot at timestamp.
// A zero timestamp selects the latest resolved snapshot.
// Returns storage.ErrNotFound when no such snapshot has been resolved.
func (g *Generator) Generate(ctx context.Context, timestamp int64) (*Report, error) {
	marker, err := g.resolveSnapshot(ctx, timestamp)
	if err != nil {
		return nil, err
	}

	stats, err := g.statisticsStore.GetByTimestamp(ctx, marker.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}

	report := &Report{
		GeneratedAt:       g.now(),
		Realm:             g.realm,
		SnapshotTimestamp: marker.Timestamp,
		SnapshotURL:       marker.URL,
		AuctionCount:      marker.AuctionCount,
		Rows:              make([]StatisticsRow, 0, len(stats)),
	}

	for _, s := range stats {
		name, err := g.itemName(ctx, s.ItemID)
		if err != nil {
			return nil, err
		}
		if name == "" {
			report.UnnamedItems++
		}
		report.TotalQuantity += s.Count
		report.Rows = append(report.Rows, StatisticsRow{
			ItemID:  s.ItemID,
			Name:    name,
			Min:     s.Min,
			Max:     s.Max,
			Average: s.Average,
			StdDev:  s.StdDev,
			Count:   s.Count,
		})
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].ItemID < report.Rows[j].ItemID
	})
	report.ItemCount = len(report.Rows)

	return report, nil
}

func (g *Generator) resolveSnapshot(ctx context.Context, timestamp int64) (*domain.SnapshotMarker, error) {
	if timestamp == 0 {
		m, err := g.snapshotStore.GetLatest(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest snapshot: %w", err)
		}
		return m, nil
	}
	m, err := g.snapshotStore.GetByTimestamp(ctx, timestamp)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", timestamp, err)
	}
	return m, nil
}

func (g *Generator) itemName(ctx context.Context, itemID int64) (string, error) {
	if g.itemStore == nil {
		return "", nil
	}
	item, err := g.itemStore.GetByID(ctx, itemID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load item %d: %w", itemID, err)
	}
	return item.Name, nil
}
