package history

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used records in memory and delegates to
// a backing Store for persistence and cache misses.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // front is most recent; values are *Record
	items map[string]*list.Element
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity must be >= 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches the record and writes it through to the backing store.
func (s *LRUStore) Save(rec *Record) error {
	s.mu.Lock()
	s.put(rec)
	s.mu.Unlock()

	return s.back.Save(rec)
}

// Load returns the cached record or loads it from the backing store and
// caches it.
func (s *LRUStore) Load(id string) (*Record, error) {
	s.mu.Lock()
	if el, ok := s.items[id]; ok {
		s.order.MoveToFront(el)
		rec := el.Value.(*Record)
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()

	rec, err := s.back.Load(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.put(rec)
	s.mu.Unlock()
	return rec, nil
}

// Len returns the number of cached records.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// put inserts or refreshes rec and evicts the oldest entry past capacity.
// Callers hold s.mu.
func (s *LRUStore) put(rec *Record) {
	if el, ok := s.items[rec.ID]; ok {
		el.Value = rec
		s.order.MoveToFront(el)
		return
	}
	s.items[rec.ID] = s.order.PushFront(rec)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*Record).ID)
	}
}
