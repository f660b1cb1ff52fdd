package ingestion

import (
	"errors"

	"wow-auction-lab/internal/feed"
)

// Run-level errors. Returned wrapped; match with errors.Is.
var (
	// ErrFeedUnavailable is returned when the snapshot index cannot be read.
	ErrFeedUnavailable = errors.New("auction feed unavailable")

	// ErrNoSnapshotsPublished is returned when the index lists no snapshots.
	ErrNoSnapshotsPublished = errors.New("no snapshots published")

	// ErrDownloadFailed is returned when the snapshot body cannot be fetched or decoded.
	ErrDownloadFailed = errors.New("snapshot download failed")

	// ErrPersistenceFailed is returned when a store read or write fails.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// ErrItemNotFound marks an item id the feed does not know.
// Backfill counts it as skipped, never as a run failure.
var ErrItemNotFound = feed.ErrItemNotFound
