package memory

import (
	"context"
	"sort"
	"sync"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// AuctionStore is an in-memory implementation of storage.AuctionStore.
type AuctionStore struct {
	mu   sync.RWMutex
	data map[int64][]*domain.AuctionRecord // keyed by snapshot timestamp
}

// NewAuctionStore creates a new in-memory auction store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		data: make(map[int64][]*domain.AuctionRecord),
	}
}

// InsertBulk adds multiple records in one batch.
func (s *AuctionStore) InsertBulk(_ context.Context, records []*domain.AuctionRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := copyAuction(r)
		s.data[r.Timestamp] = append(s.data[r.Timestamp], recordCopy)
	}
	return nil
}

// CountByTimestamp returns the number of records stored for a snapshot timestamp.
func (s *AuctionStore) CountByTimestamp(_ context.Context, timestamp int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data[timestamp]), nil
}

// GetByTimestamp retrieves all records of a snapshot, ordered by auction id ASC.
func (s *AuctionStore) GetByTimestamp(_ context.Context, timestamp int64) ([]*domain.AuctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[timestamp]
	result := make([]*domain.AuctionRecord, 0, len(stored))
	for _, r := range stored {
		result = append(result, copyAuction(r))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AuctionID < result[j].AuctionID
	})

	return result, nil
}

func copyAuction(r *domain.AuctionRecord) *domain.AuctionRecord {
	c := *r
	if r.Raw != nil {
		c.Raw = append([]byte(nil), r.Raw...)
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.AuctionStore = (*AuctionStore)(nil)
