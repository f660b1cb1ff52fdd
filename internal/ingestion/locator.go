package ingestion

import (
	"context"
	"fmt"
	"log"

	"wow-auction-lab/internal/domain"
)

// Locator resolves the current snapshot of a realm from the feed index.
// It never writes.
type Locator struct {
	source IndexSource
	logger *log.Logger
}

// LocatorOptions contains configuration for creating a Locator.
type LocatorOptions struct {
	Source IndexSource
	Logger *log.Logger
}

// NewLocator creates a new snapshot locator.
func NewLocator(opts LocatorOptions) *Locator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Locator{source: opts.Source, logger: logger}
}

// Locate returns the descriptor of the first snapshot listed by the index.
// Fails with ErrFeedUnavailable on transport or decode errors and with
// ErrNoSnapshotsPublished when the index is empty.
func (l *Locator) Locate(ctx context.Context) (*domain.SnapshotDescriptor, error) {
	idx, err := l.source.GetIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	if len(idx.Files) == 0 {
		return nil, ErrNoSnapshotsPublished
	}

	f := idx.Files[0]
	if f.URL == "" {
		return nil, fmt.Errorf("%w: index entry without url", ErrFeedUnavailable)
	}
	if f.LastModified <= 0 {
		return nil, fmt.Errorf("%w: index entry with lastModified %d", ErrFeedUnavailable, f.LastModified)
	}
	if len(idx.Files) > 1 {
		l.logger.Printf("Index lists %d snapshots, using the first", len(idx.Files))
	}

	return &domain.SnapshotDescriptor{
		URL:       f.URL,
		Timestamp: f.LastModified,
	}, nil
}
