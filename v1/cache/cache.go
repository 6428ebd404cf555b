package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-conc/v1/cache")

// ErrComputeAborted marks a flight whose computation panicked. Waiters never
// receive it directly; they retry the claim, and the panic propagates to the
// caller that ran the computation.
var ErrComputeAborted = errors.New("conc: computation aborted by panic")

// flight tracks an in-progress computation. done is closed exactly once,
// after val and err are written.
type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Cache memoizes the result of a computation per key. A key is in one of
// three states: absent, pending (a flight is in progress) or ready (the
// value is in the store). The transition absent -> pending -> ready is
// one-way; ready values are never replaced.
type Cache[K comparable, V any] struct {
	store Store[K, V]

	mu      sync.Mutex
	flights map[K]*flight[V]

	hits   atomic.Uint64
	misses atomic.Uint64

	hitCounter     prometheus.Counter
	missCounter    prometheus.Counter
	computeCounter prometheus.Counter
	latencyHist    prometheus.Histogram
	traceEnabled   bool
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithStore sets the store holding ready values. The default is an unbounded
// in-memory map.
func WithStore[K comparable, V any](s Store[K, V]) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.store = s
	}
}

// WithMetrics enables Prometheus metrics collection using the provided
// registerer.
func WithMetrics[K comparable, V any](reg prometheus.Registerer) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.hitCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_cache_hits_total",
			Help: "Total number of cache hits",
		})
		c.missCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_cache_misses_total",
			Help: "Total number of cache misses",
		})
		c.computeCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_cache_computations_total",
			Help: "Total number of computations executed",
		})
		c.latencyHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conc_cache_latency_seconds",
			Help:    "Latency of GetOrCompute calls",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(c.hitCounter, c.missCounter, c.computeCounter, c.latencyHist)
	}
}

// WithTracing enables OpenTelemetry tracing for cache operations.
func WithTracing[K comparable, V any]() Option[K, V] {
	return func(c *Cache[K, V]) {
		c.traceEnabled = true
	}
}

// New returns a new empty cache.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		flights: make(map[K]*flight[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMapStore[K, V]()
	}
	return c
}

// GetOrCompute returns the value for key, invoking fn to produce it if the
// key is absent. Under concurrent calls for the same absent key, fn runs in
// exactly one caller; the others block until the result is published and
// receive the same value. Calls for distinct keys never serialize behind one
// another: the table lock is held only for the existence-check-and-claim
// step, never while fn runs.
//
// If fn returns an error, the error goes to the caller that ran fn and the
// pending state is cleared, so a later call retries the computation. Waiters
// blocked on a failed flight retry the claim themselves. ctx cancellation
// abandons a waiter; it does not cancel the in-flight computation.
func (c *Cache[K, V]) GetOrCompute(ctx context.Context, key K, fn func(K) (V, error)) (V, error) {
	var span trace.Span
	var start time.Time
	if c.traceEnabled {
		_, span = tracer.Start(ctx, "Cache.GetOrCompute")
		defer span.End()
		start = time.Now()
	} else if c.latencyHist != nil {
		start = time.Now()
	}
	if c.traceEnabled || c.latencyHist != nil {
		defer func() {
			latency := time.Since(start)
			if c.traceEnabled {
				span.SetAttributes(attribute.Int64("conc.cache.latency_ms", latency.Milliseconds()))
			}
			if c.latencyHist != nil {
				c.latencyHist.Observe(latency.Seconds())
			}
		}()
	}

	for {
		if v, ok := c.store.Get(key); ok {
			c.hit(span, "hit")
			return v, nil
		}

		c.mu.Lock()
		if f, ok := c.flights[key]; ok {
			c.mu.Unlock()
			select {
			case <-f.done:
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			}
			if f.err == nil {
				c.hit(span, "wait")
				return f.val, nil
			}
			// The winner failed and the pending state was cleared;
			// take another shot at claiming the key.
			continue
		}
		if v, ok := c.store.Get(key); ok {
			// Published between the first store lookup and the claim.
			c.mu.Unlock()
			c.hit(span, "hit")
			return v, nil
		}
		f := &flight[V]{done: make(chan struct{})}
		c.flights[key] = f
		c.mu.Unlock()

		v, err := c.compute(key, f, fn)
		if err == nil {
			c.store.Set(key, v)
		}
		f.val, f.err = v, err
		c.mu.Lock()
		delete(c.flights, key)
		c.mu.Unlock()
		close(f.done)

		c.misses.Add(1)
		if c.missCounter != nil {
			c.missCounter.Inc()
		}
		if c.traceEnabled {
			span.SetAttributes(attribute.String("conc.cache.result", "computed"))
		}
		return v, err
	}
}

// compute runs fn with the table lock released. A panic in fn still resolves
// the flight before propagating, so waiters retry instead of blocking
// forever.
func (c *Cache[K, V]) compute(key K, f *flight[V], fn func(K) (V, error)) (v V, err error) {
	if c.computeCounter != nil {
		c.computeCounter.Inc()
	}
	defer func() {
		if r := recover(); r != nil {
			f.err = ErrComputeAborted
			c.mu.Lock()
			delete(c.flights, key)
			c.mu.Unlock()
			close(f.done)
			panic(r)
		}
	}()
	return fn(key)
}

func (c *Cache[K, V]) hit(span trace.Span, result string) {
	c.hits.Add(1)
	if c.hitCounter != nil {
		c.hitCounter.Inc()
	}
	if c.traceEnabled {
		span.SetAttributes(attribute.String("conc.cache.result", result))
	}
}

// Stats reports basic metrics about cache usage.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Pending int
}

// Metrics returns current metrics for the cache.
func (c *Cache[K, V]) Metrics() Stats {
	c.mu.Lock()
	pending := len(c.flights)
	c.mu.Unlock()
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Pending: pending,
	}
}
