package cache

import "sync"

// Store holds ready values on behalf of a Cache. Implementations must be
// safe for concurrent use. A Store that can drop entries (bounded stores)
// weakens the cache's at-most-once guarantee to at-most-once-per-residency:
// an evicted key is recomputed on the next request, still single-flight.
type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
}

// MapStore is the default unbounded in-memory store. It never drops entries,
// preserving the strict at-most-one-computation-per-key guarantee for the
// lifetime of the cache.
type MapStore[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
}

// NewMapStore returns a new empty MapStore.
func NewMapStore[K comparable, V any]() *MapStore[K, V] {
	return &MapStore[K, V]{values: make(map[K]V)}
}

// Get implements Store.Get.
func (s *MapStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return v, ok
}

// Set implements Store.Set.
func (s *MapStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Len reports the number of stored values.
func (s *MapStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
