package memory

import (
	"context"
	"sync"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// ItemStore is an in-memory implementation of storage.ItemStore.
type ItemStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.ItemMetadata // keyed by item_id
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		data: make(map[int64]*domain.ItemMetadata),
	}
}

// Upsert inserts the item or replaces the stored one with the same ItemID.
func (s *ItemStore) Upsert(_ context.Context, m *domain.ItemMetadata) error {
	if m == nil || m.ItemID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[m.ItemID] = copyItem(m)
	return nil
}

// UpsertBulk upserts multiple items. Later entries win on repeated ids.
func (s *ItemStore) UpsertBulk(_ context.Context, items []*domain.ItemMetadata) error {
	for _, m := range items {
		if m == nil || m.ItemID <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range items {
		s.data[m.ItemID] = copyItem(m)
	}
	return nil
}

// GetByID retrieves an item by id. Returns ErrNotFound if not exists.
func (s *ItemStore) GetByID(_ context.Context, itemID int64) (*domain.ItemMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[itemID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyItem(m), nil
}

// FindMissing returns the ids that have no stored item, in input order without repeats.
func (s *ItemStore) FindMissing(_ context.Context, itemIDs []int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{}, len(itemIDs))
	var missing []int64
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, exists := s.data[id]; !exists {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Len returns the number of stored items.
func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func copyItem(m *domain.ItemMetadata) *domain.ItemMetadata {
	c := *m
	if m.Raw != nil {
		c.Raw = append([]byte(nil), m.Raw...)
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.ItemStore = (*ItemStore)(nil)
