package memory

import (
	"context"
	"sort"
	"sync"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.SnapshotMarker // keyed by timestamp
}

// NewSnapshotStore creates a new in-memory snapshot marker store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[int64]*domain.SnapshotMarker),
	}
}

// Insert adds a marker. Returns ErrDuplicateKey if the timestamp exists.
func (s *SnapshotStore) Insert(_ context.Context, m *domain.SnapshotMarker) error {
	if m == nil || m.Timestamp <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.Timestamp]; exists {
		return storage.ErrDuplicateKey
	}

	markerCopy := *m
	s.data[m.Timestamp] = &markerCopy
	return nil
}

// Exists reports whether a marker is stored for the timestamp.
func (s *SnapshotStore) Exists(_ context.Context, timestamp int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[timestamp]
	return exists, nil
}

// GetByTimestamp retrieves a marker. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByTimestamp(_ context.Context, timestamp int64) (*domain.SnapshotMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[timestamp]
	if !exists {
		return nil, storage.ErrNotFound
	}

	markerCopy := *m
	return &markerCopy, nil
}

// GetLatest returns the marker with the greatest timestamp.
func (s *SnapshotStore) GetLatest(_ context.Context) (*domain.SnapshotMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.SnapshotMarker
	for _, m := range s.data {
		if latest == nil || m.Timestamp > latest.Timestamp {
			latest = m
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	markerCopy := *latest
	return &markerCopy, nil
}

// List returns up to limit markers, newest first.
func (s *SnapshotStore) List(_ context.Context, limit int) ([]*domain.SnapshotMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SnapshotMarker, 0, len(s.data))
	for _, m := range s.data {
		markerCopy := *m
		result = append(result, &markerCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
