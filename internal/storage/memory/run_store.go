package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*domain.IngestRun
}

// NewRunStore creates a new in-memory run ledger.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[uuid.UUID]*domain.IngestRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if the id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.IngestRun) error {
	if r == nil || r.ID == uuid.Nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *r
	s.data[r.ID] = &runCopy
	return nil
}

// Update replaces a stored run. Returns ErrNotFound if not exists.
func (s *RunStore) Update(_ context.Context, r *domain.IngestRun) error {
	if r == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; !exists {
		return storage.ErrNotFound
	}

	runCopy := *r
	s.data[r.ID] = &runCopy
	return nil
}

// GetByID retrieves a run by id. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.IngestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *r
	return &runCopy, nil
}

// ListRecent returns up to limit runs, newest first.
func (s *RunStore) ListRecent(_ context.Context, limit int) ([]*domain.IngestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.IngestRun, 0, len(s.data))
	for _, r := range s.data {
		runCopy := *r
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt > result[j].StartedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RunStore = (*RunStore)(nil)
