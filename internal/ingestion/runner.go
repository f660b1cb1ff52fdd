package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/feed"
	"wow-auction-lab/internal/idhash"
	"wow-auction-lab/internal/metrics"
	"wow-auction-lab/internal/observability"
	"wow-auction-lab/internal/storage"
)

// Runner executes one ingestion run: locate, dedup, download, archive,
// persist auctions, backfill items, compute statistics, mark resolved.
type Runner struct {
	locator         *Locator
	snapshots       SnapshotSource
	backfiller      *ItemBackfiller
	auctionStore    storage.AuctionStore
	snapshotStore   storage.SnapshotStore
	statisticsStore storage.StatisticsStore
	runStore        storage.RunStore
	archiver        Archiver
	realm           string
	logger          *log.Logger
	verbose         bool
	now             func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Locator         *Locator
	Snapshots       SnapshotSource
	Backfiller      *ItemBackfiller
	AuctionStore    storage.AuctionStore
	SnapshotStore   storage.SnapshotStore
	StatisticsStore storage.StatisticsStore
	RunStore        storage.RunStore // optional run ledger
	Archiver        Archiver         // optional raw body archive
	Realm           string
	Logger          *log.Logger
	Verbose         bool
	Now             func() time.Time
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		locator:         opts.Locator,
		snapshots:       opts.Snapshots,
		backfiller:      opts.Backfiller,
		auctionStore:    opts.AuctionStore,
		snapshotStore:   opts.SnapshotStore,
		statisticsStore: opts.StatisticsStore,
		runStore:        opts.RunStore,
		archiver:        opts.Archiver,
		realm:           opts.Realm,
		logger:          logger,
		verbose:         opts.Verbose,
		now:             now,
	}
}

// RunResult summarises one Pull.
type RunResult struct {
	RunID            uuid.UUID
	Mode             domain.PullMode
	Status           domain.RunStatus
	Snapshot         *domain.SnapshotDescriptor
	AuctionsStored   int  // 0 when the snapshot's auctions were already stored
	Resumed          bool // auctions existed without a marker; later steps were completed
	Backfill         *BackfillResult
	StatisticsStored int
	RecordsSkipped   int // records excluded from statistics for quantity <= 0
	Duration         time.Duration
}

// NoUpdate reports whether the run ended early because the snapshot was
// already resolved.
func (r *RunResult) NoUpdate() bool {
	return r.Status == domain.RunStatusNoUpdate
}

// Pull runs the pipeline once for the current snapshot.
// In PullModeNew a snapshot with a marker ends the run with NoUpdate before
// anything is downloaded. In either mode a snapshot with a marker ends
// with NoUpdate after the download, whatever its auction count.
func (r *Runner) Pull(ctx context.Context, mode domain.PullMode) (*RunResult, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown pull mode %q", mode)
	}

	started := r.now()
	result := &RunResult{RunID: uuid.New(), Mode: mode, Status: domain.RunStatusRunning}
	run := &domain.IngestRun{
		ID:        result.RunID,
		Mode:      mode,
		Realm:     r.realm,
		StartedAt: started.UnixMilli(),
		Status:    domain.RunStatusRunning,
	}
	r.recordRunStart(ctx, run)

	err := r.pull(ctx, mode, started, result)

	result.Duration = time.Since(started)
	if err != nil {
		result.Status = domain.RunStatusFailed
	}
	r.recordRunFinish(ctx, run, result, err)

	return result, err
}

func (r *Runner) pull(ctx context.Context, mode domain.PullMode, started time.Time, result *RunResult) error {
	// Located
	desc, err := r.locator.Locate(ctx)
	if err != nil {
		return err
	}
	result.Snapshot = desc
	r.logger.Printf("Located snapshot %d (%s)", desc.Timestamp, desc.URL)

	// DedupChecked
	if mode == domain.PullModeNew {
		resolved, err := r.snapshotStore.Exists(ctx, desc.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: check snapshot marker: %w", ErrPersistenceFailed, err)
		}
		if resolved {
			r.logger.Printf("Snapshot %d already resolved, nothing to do", desc.Timestamp)
			observability.RecordSnapshot("no_update", desc.Timestamp)
			result.Status = domain.RunStatusNoUpdate
			return nil
		}
	}

	// Downloaded
	dlStart := time.Now()
	body, err := r.snapshots.GetSnapshot(ctx, desc.URL)
	observability.RecordFeedLatency("snapshot", time.Since(dlStart).Seconds())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	observability.DefaultMetrics.SnapshotBytes.Observe(float64(len(body)))

	// Archived
	if r.archiver != nil {
		key := ArchiveKey(started)
		if err := r.archiver.Archive(ctx, key, body); err != nil {
			observability.RecordArchiveFailure()
			r.logger.Printf("Archive %s failed: %v", key, err)
		}
	}

	records, err := feed.ParseSnapshot(body, desc.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	digest := idhash.ComputeSnapshotDigest(body)
	r.logger.Printf("Downloaded %d auctions (%d bytes, sha256 %.12s)", len(records), len(body), digest)

	marker, err := r.snapshotStore.GetByTimestamp(ctx, desc.Timestamp)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: load snapshot marker: %w", ErrPersistenceFailed, err)
	}
	if marker != nil {
		if marker.BodyDigest != "" && marker.BodyDigest != digest {
			r.logger.Printf("Warning: snapshot %d body differs from the resolved one (sha256 %.12s, stored %.12s)",
				desc.Timestamp, digest, marker.BodyDigest)
		}
		r.logger.Printf("Snapshot %d already resolved (%d auctions), nothing to do", desc.Timestamp, marker.AuctionCount)
		observability.RecordSnapshot("no_update", desc.Timestamp)
		result.Status = domain.RunStatusNoUpdate
		return nil
	}

	// RecordsPersisted
	existing, err := r.auctionStore.CountByTimestamp(ctx, desc.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: count auctions: %w", ErrPersistenceFailed, err)
	}
	if existing > 0 {
		r.logger.Printf("Snapshot %d has %d stored auctions but no marker, resuming", desc.Timestamp, existing)
		result.Resumed = true
	} else {
		if err := r.auctionStore.InsertBulk(ctx, records); err != nil {
			return fmt.Errorf("%w: insert auctions: %w", ErrPersistenceFailed, err)
		}
		result.AuctionsStored = len(records)
		observability.RecordAuctionsStored(len(records))
	}

	// MetadataBackfilled
	itemIDs := make([]int64, 0, len(records))
	for _, rec := range records {
		itemIDs = append(itemIDs, rec.ItemID)
	}
	result.Backfill = r.backfiller.Backfill(ctx, itemIDs)

	// StatisticsComputed
	agg := metrics.Aggregate(records)
	if n := len(agg.Skipped); n > 0 {
		result.RecordsSkipped = n
		observability.RecordSkipped("non_positive_quantity", n)
		r.logger.Printf("Warning: %d auctions with non-positive quantity excluded from statistics", n)
		for _, rec := range agg.Skipped {
			r.debugf("Skipped auction %d item %d quantity %d", rec.AuctionID, rec.ItemID, rec.Quantity)
		}
	}

	stored, err := r.statisticsStore.CountByTimestamp(ctx, desc.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: count statistics: %w", ErrPersistenceFailed, err)
	}
	if stored > 0 {
		r.logger.Printf("Statistics for snapshot %d already stored (%d rows), skipping", desc.Timestamp, stored)
	} else {
		err := r.statisticsStore.InsertBulk(ctx, agg.Statistics)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			r.logger.Printf("Statistics for snapshot %d written concurrently, skipping", desc.Timestamp)
		case err != nil:
			return fmt.Errorf("%w: insert statistics: %w", ErrPersistenceFailed, err)
		default:
			result.StatisticsStored = len(agg.Statistics)
			observability.RecordStatisticsStored(len(agg.Statistics))
		}
	}

	// Done
	marker = &domain.SnapshotMarker{
		Timestamp:       desc.Timestamp,
		URL:             desc.URL,
		AuctionCount:    len(records),
		ItemCount:       result.Backfill.Requested,
		StatisticsCount: len(agg.Statistics),
		BodyDigest:      digest,
		CreatedAt:       r.now().UnixMilli(),
	}
	if err := r.snapshotStore.Insert(ctx, marker); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("%w: insert snapshot marker: %w", ErrPersistenceFailed, err)
	}

	observability.RecordSnapshot("resolved", desc.Timestamp)
	result.Status = domain.RunStatusCompleted
	r.logger.Printf("Snapshot %d resolved: %d auctions stored, %d items fetched, %d statistics stored",
		desc.Timestamp, result.AuctionsStored, result.Backfill.Fetched, result.StatisticsStored)
	return nil
}

func (r *Runner) recordRunStart(ctx context.Context, run *domain.IngestRun) {
	if r.runStore == nil {
		return
	}
	if err := r.runStore.Insert(ctx, run); err != nil {
		r.logger.Printf("Run ledger insert failed: %v", err)
	}
}

func (r *Runner) recordRunFinish(ctx context.Context, run *domain.IngestRun, result *RunResult, runErr error) {
	observability.RecordRun(string(result.Mode), string(result.Status), result.Duration.Seconds())
	if runErr == nil {
		observability.MarkRunSucceeded()
	}

	if r.runStore == nil {
		return
	}

	run.FinishedAt = r.now().UnixMilli()
	run.Status = result.Status
	if result.Snapshot != nil {
		run.SnapshotTimestamp = result.Snapshot.Timestamp
	}
	run.AuctionsStored = result.AuctionsStored
	if result.Backfill != nil {
		run.ItemsFetched = result.Backfill.Fetched
	}
	run.StatisticsStored = result.StatisticsStored
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// The run context may already be cancelled; the ledger entry is still wanted.
	if err := r.runStore.Update(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Printf("Run ledger update failed: %v", err)
	}
}

func (r *Runner) debugf(format string, args ...any) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}
