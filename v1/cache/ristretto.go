package cache

import "github.com/dgraph-io/ristretto"

// RistrettoStore implements Store using dgraph-io/ristretto, bounding the
// memory held by ready values. Ristretto may evict or reject entries, so a
// cache using this store recomputes evicted keys on demand; each recompute
// is still single-flight. Keys must be of a type ristretto can hash
// (strings, integers, byte slices).
type RistrettoStore[K comparable, V any] struct {
	c *ristretto.Cache
}

// RistrettoOption configures the underlying ristretto cache.
type RistrettoOption func(*ristretto.Config)

// WithRistretto applies a custom ristretto configuration.
//
// If cfg is nil, defaults are used.
func WithRistretto(cfg *ristretto.Config) RistrettoOption {
	return func(c *ristretto.Config) {
		if cfg == nil {
			return
		}
		*c = *cfg
	}
}

// NewRistrettoStore returns a Store backed by ristretto.
//
// Default configuration aims for a generous in-memory cache.
func NewRistrettoStore[K comparable, V any](opts ...RistrettoOption) *RistrettoStore[K, V] {
	cfg := &ristretto.Config{
		NumCounters: 1e4,     // number of keys to track frequency of (10k).
		MaxCost:     1 << 20, // maximum cost of cache (1MB by default).
		BufferItems: 64,      // number of keys per Get buffer.
	}
	for _, opt := range opts {
		opt(cfg)
	}
	rc, err := ristretto.NewCache(cfg)
	if err != nil {
		panic(err)
	}
	return &RistrettoStore[K, V]{c: rc}
}

// Get implements Store.Get.
func (r *RistrettoStore[K, V]) Get(key K) (V, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	val, _ := v.(V)
	return val, true
}

// Set implements Store.Set. The write is applied synchronously so a value
// published by a finished flight is immediately visible to waiters.
func (r *RistrettoStore[K, V]) Set(key K, value V) {
	r.c.Set(key, value, 1)
	r.c.Wait()
}

// Close releases resources held by the store.
func (r *RistrettoStore[K, V]) Close() {
	r.c.Close()
}
