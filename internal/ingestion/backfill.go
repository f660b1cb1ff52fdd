package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/feed"
	"wow-auction-lab/internal/observability"
	"wow-auction-lab/internal/storage"
)

// DefaultBackfillConcurrency is the number of item fetches in flight.
const DefaultBackfillConcurrency = 5

// ItemBackfiller fetches metadata for item ids missing from the item store.
type ItemBackfiller struct {
	source      ItemSource
	store       storage.ItemStore
	concurrency int
	logger      *log.Logger
	verbose     bool
	now         func() time.Time
}

// BackfillOptions contains configuration for creating an ItemBackfiller.
type BackfillOptions struct {
	Source      ItemSource
	Store       storage.ItemStore
	Concurrency int // default 5
	Logger      *log.Logger
	Verbose     bool             // log every skipped item
	Now         func() time.Time // clock for FetchedAt, default time.Now
}

// NewItemBackfiller creates a new item metadata backfiller.
func NewItemBackfiller(opts BackfillOptions) *ItemBackfiller {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultBackfillConcurrency
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ItemBackfiller{
		source:      opts.Source,
		store:       opts.Store,
		concurrency: concurrency,
		logger:      logger,
		verbose:     opts.Verbose,
		now:         now,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	Requested    int // distinct ids passed in
	AlreadyKnown int // ids present in the store before fetching
	Fetched      int // documents retrieved and stored
	NotFound     int // ids the feed does not know
	Failed       int // transport or store failures
	Duration     time.Duration
}

// Skipped returns the number of ids left without metadata.
func (r *BackfillResult) Skipped() int {
	return r.NotFound + r.Failed
}

type fetchOutcome struct {
	item *domain.ItemMetadata
	err  error
}

// Backfill fetches every id not yet in the store, at most concurrency at a
// time, and upserts the successes once all fetches have finished.
// Per-item failures are counted, never returned.
func (b *ItemBackfiller) Backfill(ctx context.Context, itemIDs []int64) *BackfillResult {
	start := time.Now()
	ids := distinct(itemIDs)
	result := &BackfillResult{Requested: len(ids)}

	missing, err := b.store.FindMissing(ctx, ids)
	if err != nil {
		// Upserts are idempotent, so refetching known ids is safe.
		b.logger.Printf("Item lookup failed, fetching all %d ids: %v", len(ids), err)
		missing = ids
	}
	result.AlreadyKnown = len(ids) - len(missing)

	outcomes := make([]fetchOutcome, len(missing))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, id := range missing {
		g.Go(func() error {
			observability.DefaultMetrics.ItemsInFlight.Inc()
			defer observability.DefaultMetrics.ItemsInFlight.Dec()

			outcomes[i] = b.fetch(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for i, out := range outcomes {
		id := missing[i]
		switch {
		case errors.Is(out.err, ErrItemNotFound):
			result.NotFound++
			observability.RecordItemFailure("not_found")
			b.debugf("Item %d not found, skipping", id)
		case out.err != nil:
			result.Failed++
			observability.RecordItemFailure("transport")
			b.debugf("Item %d fetch failed, skipping: %v", id, out.err)
		default:
			if err := b.store.Upsert(ctx, out.item); err != nil {
				result.Failed++
				observability.RecordItemFailure("store")
				b.logger.Printf("Upsert item %d failed: %v", id, err)
				continue
			}
			result.Fetched++
			observability.RecordItemFetched()
		}
	}

	result.Duration = time.Since(start)
	if len(missing) > 0 {
		b.logger.Printf("Backfill: %d missing, %d fetched, %d not found, %d failed (%s)",
			len(missing), result.Fetched, result.NotFound, result.Failed, result.Duration.Round(time.Millisecond))
	}
	return result
}

func (b *ItemBackfiller) fetch(ctx context.Context, id int64) fetchOutcome {
	start := time.Now()
	doc, err := b.source.GetItem(ctx, id)
	observability.RecordFeedLatency("item", time.Since(start).Seconds())
	if err != nil {
		return fetchOutcome{err: err}
	}
	return fetchOutcome{item: &domain.ItemMetadata{
		ItemID:    id,
		Name:      feed.ItemName(doc),
		Raw:       doc,
		FetchedAt: b.now().UnixMilli(),
	}}
}

func (b *ItemBackfiller) debugf(format string, args ...any) {
	if b.verbose {
		b.logger.Printf(format, args...)
	}
}

// distinct returns ids without repeats, in first-seen order.
func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
