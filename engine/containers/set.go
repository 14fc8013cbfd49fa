package containers

import "sync"

// Set is a thread-safe set guarded by a RWMutex, so readers on other
// goroutines can query it while a single writer adds to it.
type Set[K comparable] struct {
	data map[K]struct{}
	mu   sync.RWMutex
}

func NewSet[K comparable]() *Set[K] {
	return &Set[K]{
		data: make(map[K]struct{}),
	}
}

// Add inserts key, reporting whether it was not present before.
func (s *Set[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false
	}
	s.data[key] = struct{}{}
	return true
}

func (s *Set[K]) Has(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

func (s *Set[K]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
