package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"wow-auction-lab/internal/feed"
)

// StubFeed serves a fixed index, snapshot bodies and item documents from memory.
// Implements ingestion.IndexSource, ingestion.SnapshotSource and ingestion.ItemSource.
type StubFeed struct {
	mu        sync.RWMutex
	index     *feed.Index
	indexErr  error
	snapshots map[string][]byte
	items     map[int64]json.RawMessage
	itemErrs  map[int64]error

	IndexCalls    atomic.Int32
	SnapshotCalls atomic.Int32
	ItemCalls     atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	itemHook    func(itemID int64)
}

// NewStubFeed creates an empty stub feed.
func NewStubFeed() *StubFeed {
	return &StubFeed{
		index:     &feed.Index{},
		snapshots: make(map[string][]byte),
		items:     make(map[int64]json.RawMessage),
		itemErrs:  make(map[int64]error),
	}
}

// Publish lists url as the current snapshot with the given timestamp and body.
func (s *StubFeed) Publish(url string, lastModified int64, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = &feed.Index{Files: []feed.IndexFile{{URL: url, LastModified: lastModified}}}
	s.snapshots[url] = body
}

// SetIndexError makes GetIndex fail with err.
func (s *StubFeed) SetIndexError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexErr = err
}

// ClearIndex publishes an empty index.
func (s *StubFeed) ClearIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = &feed.Index{}
}

// AddItem registers an item document.
func (s *StubFeed) AddItem(itemID int64, doc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemID] = json.RawMessage(doc)
}

// FailItem makes GetItem for itemID fail with err.
func (s *StubFeed) FailItem(itemID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemErrs[itemID] = err
}

// OnItem installs a hook called inside every GetItem, used to hold fetches open.
func (s *StubFeed) OnItem(hook func(itemID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemHook = hook
}

// MaxInFlight returns the highest number of concurrent GetItem calls observed.
func (s *StubFeed) MaxInFlight() int {
	return int(s.maxInFlight.Load())
}

// GetIndex returns the published index.
func (s *StubFeed) GetIndex(_ context.Context) (*feed.Index, error) {
	s.IndexCalls.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexErr != nil {
		return nil, s.indexErr
	}
	idx := &feed.Index{Files: append([]feed.IndexFile(nil), s.index.Files...)}
	return idx, nil
}

// GetSnapshot returns the body published under url.
func (s *StubFeed) GetSnapshot(_ context.Context, url string) ([]byte, error) {
	s.SnapshotCalls.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.snapshots[url]
	if !ok {
		return nil, &feed.StatusError{URL: url, Code: 404}
	}
	return append([]byte(nil), body...), nil
}

// GetItem returns the registered document, a registered error, or
// feed.ErrItemNotFound for unknown ids.
func (s *StubFeed) GetItem(ctx context.Context, itemID int64) (json.RawMessage, error) {
	s.ItemCalls.Add(1)

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	s.mu.RLock()
	hook := s.itemHook
	doc, ok := s.items[itemID]
	itemErr := s.itemErrs[itemID]
	s.mu.RUnlock()

	if hook != nil {
		hook(itemID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if itemErr != nil {
		return nil, itemErr
	}
	if !ok {
		return nil, fmt.Errorf("item %d: item not found: %w", itemID, feed.ErrItemNotFound)
	}
	return doc, nil
}
