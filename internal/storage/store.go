package storage

import (
	"sync"

	"alert-relay/internal/alert"
)

type route struct {
	key string
	url string
}

// Store accumulates alert batches between flushes. Append and DrainAndClear
// share one mutex; neither does I/O while holding it.
type Store struct {
	mu       sync.Mutex
	strategy string
	batches  map[route]*alert.Batch
	order    []*alert.Batch
	pending  int
	observe  func(pending int)
}

func NewStore(strategyName string) *Store {
	return &Store{
		strategy: strategyName,
		batches:  make(map[route]*alert.Batch),
	}
}

// OnPendingChange registers fn to receive the pending event count after
// every Append and DrainAndClear. fn runs under the store lock and must not
// block or call back into the store.
func (s *Store) OnPendingChange(fn func(pending int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe = fn
}

// Append adds ev to the batch for (key, url), creating the batch on first use
// within the current accumulation window.
func (s *Store) Append(key string, ev alert.Event, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := route{key: key, url: url}
	b, ok := s.batches[r]
	if !ok {
		b = &alert.Batch{
			Key:          key,
			URL:          url,
			StrategyName: s.strategy,
		}
		s.batches[r] = b
		s.order = append(s.order, b)
	}
	b.Add(ev)
	s.pending++
	if s.observe != nil {
		s.observe(s.pending)
	}
}

// DrainAndClear takes every pending batch, in creation order, and leaves the
// store empty. The returned batches are owned by the caller.
func (s *Store) DrainAndClear() []*alert.Batch {
	s.mu.Lock()
	taken := s.order
	s.batches = make(map[route]*alert.Batch)
	s.order = nil
	s.pending = 0
	if s.observe != nil {
		s.observe(0)
	}
	s.mu.Unlock()

	return taken
}

// Len returns the number of pending events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Batches returns the number of pending batches.
func (s *Store) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
