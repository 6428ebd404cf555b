package presets

import (
	"github.com/mirkobrombin/go-conc/v1/cache"
	"github.com/mirkobrombin/go-conc/v1/pool"
	"github.com/mirkobrombin/go-conc/v1/stack"
	"github.com/prometheus/client_golang/prometheus"
)

// NewBoundedCache creates a single-flight cache whose ready values live in a
// memory-bounded ristretto store. Evicted keys are recomputed on demand,
// still single-flight; use cache.New for the strict at-most-once-per-key
// guarantee.
func NewBoundedCache[K comparable, V any]() *cache.Cache[K, V] {
	return cache.New[K, V](cache.WithStore[K, V](cache.NewRistrettoStore[K, V]()))
}

// NewObservedCache creates an unbounded single-flight cache with Prometheus
// metrics and OpenTelemetry tracing enabled.
func NewObservedCache[K comparable, V any](reg prometheus.Registerer) *cache.Cache[K, V] {
	return cache.New[K, V](
		cache.WithMetrics[K, V](reg),
		cache.WithTracing[K, V](),
	)
}

// NewObservedStack creates an elimination-backoff stack with Prometheus
// metrics enabled.
func NewObservedStack[T any](reg prometheus.Registerer) *stack.Elim[T] {
	return stack.New[T](stack.WithMetrics[T](reg))
}

// NewObservedPool creates a worker pool with n workers and Prometheus
// metrics enabled. Panics if n <= 0.
func NewObservedPool(n int, reg prometheus.Registerer) *pool.Pool {
	return pool.New(n, pool.WithMetrics(reg))
}
