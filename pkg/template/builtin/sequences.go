package builtin

import (
	"sync"
	"sync/atomic"
)

// SequenceStore holds named auto-incrementing counters for sequence().
// Counters are created on first use and advanced atomically.
type SequenceStore struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

// NewSequenceStore creates an empty store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{counters: make(map[string]*atomic.Int64)}
}

// Next returns the next value of the named sequence. A new sequence yields
// start first.
func (s *SequenceStore) Next(name string, start int64) int64 {
	s.mu.RLock()
	c, ok := s.counters[name]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if c, ok = s.counters[name]; !ok {
			c = new(atomic.Int64)
			c.Store(start - 1)
			s.counters[name] = c
		}
		s.mu.Unlock()
	}
	return c.Add(1)
}

// Current returns the last value handed out for name.
func (s *SequenceStore) Current(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.counters[name]
	if !ok {
		return 0, false
	}
	return c.Load(), true
}

// Reset forgets a sequence so it restarts from its start value.
func (s *SequenceStore) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, name)
}
