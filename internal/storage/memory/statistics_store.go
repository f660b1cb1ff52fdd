package memory

import (
	"context"
	"sort"
	"sync"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

type statisticsKey struct {
	itemID    int64
	timestamp int64
}

// StatisticsStore is an in-memory implementation of storage.StatisticsStore.
type StatisticsStore struct {
	mu   sync.RWMutex
	data map[statisticsKey]*domain.ItemStatistics
}

// NewStatisticsStore creates a new in-memory statistics store.
func NewStatisticsStore() *StatisticsStore {
	return &StatisticsStore{
		data: make(map[statisticsKey]*domain.ItemStatistics),
	}
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *StatisticsStore) InsertBulk(_ context.Context, stats []*domain.ItemStatistics) error {
	if len(stats) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[statisticsKey]struct{}, len(stats))
	for _, st := range stats {
		if st == nil {
			return storage.ErrInvalidInput
		}
		key := statisticsKey{itemID: st.ItemID, timestamp: st.Timestamp}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}

	for _, st := range stats {
		statCopy := *st
		s.data[statisticsKey{itemID: st.ItemID, timestamp: st.Timestamp}] = &statCopy
	}
	return nil
}

// CountByTimestamp returns the number of rows stored for a snapshot timestamp.
func (s *StatisticsStore) CountByTimestamp(_ context.Context, timestamp int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for key := range s.data {
		if key.timestamp == timestamp {
			count++
		}
	}
	return count, nil
}

// GetByTimestamp retrieves all rows of a snapshot, ordered by item id ASC.
func (s *StatisticsStore) GetByTimestamp(_ context.Context, timestamp int64) ([]*domain.ItemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ItemStatistics
	for key, st := range s.data {
		if key.timestamp == timestamp {
			statCopy := *st
			result = append(result, &statCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ItemID < result[j].ItemID
	})
	return result, nil
}

// GetByItem retrieves the history of one item, ordered by timestamp ASC.
func (s *StatisticsStore) GetByItem(_ context.Context, itemID int64) ([]*domain.ItemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ItemStatistics
	for key, st := range s.data {
		if key.itemID == itemID {
			statCopy := *st
			result = append(result, &statCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.StatisticsStore = (*StatisticsStore)(nil)
