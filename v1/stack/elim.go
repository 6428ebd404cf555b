package stack

import (
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// descriptor carries a pending push through an exchange slot. A fresh
// descriptor is allocated per operation, so a claim CAS can only ever succeed
// on the descriptor it observed.
type descriptor[T any] struct {
	value T
}

type exchanger[T any] struct {
	cell atomic.Pointer[descriptor[T]]
}

// defaultSlots and defaultWindow trade latency for reduced shared-stack
// contention; larger values help only at high thread counts.
const (
	defaultSlots  = 16
	defaultWindow = 100 * time.Microsecond
)

// Elim wraps a stack backend with an elimination-backoff layer. A push
// publishes its value in a random exchange slot and waits a bounded window
// for a concurrent pop to claim it; a pop tries to claim a pending push. On
// a claim both operations complete without touching the shared stack. When
// the window expires, either side falls back to the backend.
//
// Eliminated pairs are not globally ordered relative to stack-routed
// operations; relative to the backend alone, LIFO order is preserved.
type Elim[T any] struct {
	inner  Backend[T]
	slots  []exchanger[T]
	window time.Duration

	eliminations prometheus.Counter
	fallbacks    prometheus.Counter
}

// ElimOption configures an Elim stack.
type ElimOption[T any] func(*Elim[T])

// WithSlots sets the size of the exchange slot array. Panics if n <= 0.
func WithSlots[T any](n int) ElimOption[T] {
	if n <= 0 {
		panic("conc: WithSlots requires n > 0")
	}
	return func(e *Elim[T]) {
		e.slots = make([]exchanger[T], n)
	}
}

// WithWindow sets how long an operation waits in an exchange slot before
// falling back to the shared stack. A zero or negative window disables
// waiting: a pop still claims an already-pending push when it finds one.
func WithWindow[T any](d time.Duration) ElimOption[T] {
	return func(e *Elim[T]) {
		e.window = d
	}
}

// WithMetrics enables Prometheus metrics collection using the provided
// registerer.
func WithMetrics[T any](reg prometheus.Registerer) ElimOption[T] {
	return func(e *Elim[T]) {
		e.eliminations = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_stack_eliminations_total",
			Help: "Total number of push/pop pairs matched in the elimination layer",
		})
		e.fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conc_stack_fallbacks_total",
			Help: "Total number of operations routed to the shared stack after the elimination window expired",
		})
		reg.MustRegister(e.eliminations, e.fallbacks)
	}
}

// NewElim returns an elimination layer in front of inner. If inner is nil a
// new Treiber stack is used.
func NewElim[T any](inner Backend[T], opts ...ElimOption[T]) *Elim[T] {
	if inner == nil {
		inner = NewTreiber[T]()
	}
	e := &Elim[T]{
		inner:  inner,
		window: defaultWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.slots == nil {
		e.slots = make([]exchanger[T], defaultSlots)
	}
	return e
}

// New returns an elimination-backoff stack over a fresh Treiber stack.
func New[T any](opts ...ElimOption[T]) *Elim[T] {
	return NewElim[T](nil, opts...)
}

// Push adds value to the stack, preferring a direct hand-off to a concurrent
// Pop. It never fails.
func (e *Elim[T]) Push(value T) {
	d := &descriptor[T]{value: value}
	slot := &e.slots[rand.IntN(len(e.slots))]
	if slot.cell.CompareAndSwap(nil, d) {
		deadline := time.Now().Add(e.window)
		for time.Now().Before(deadline) {
			if slot.cell.Load() != d {
				// Only a pop removes a foreign descriptor, so the value
				// has changed hands.
				e.count(e.eliminations)
				return
			}
			runtime.Gosched()
		}
		if !slot.cell.CompareAndSwap(d, nil) {
			// Claimed between the deadline check and the withdrawal.
			e.count(e.eliminations)
			return
		}
	}
	e.count(e.fallbacks)
	e.inner.Push(value)
}

// Pop removes and returns the top value, claiming a concurrent pending Push
// when one is available. It returns false only if the elimination window
// expired without a partner and the shared stack is empty.
func (e *Elim[T]) Pop() (T, bool) {
	deadline := time.Now().Add(e.window)
	for {
		slot := &e.slots[rand.IntN(len(e.slots))]
		if d := slot.cell.Load(); d != nil && slot.cell.CompareAndSwap(d, nil) {
			e.count(e.eliminations)
			return d.value, true
		}
		if !time.Now().Before(deadline) {
			break
		}
		runtime.Gosched()
	}
	v, ok := e.inner.Pop()
	if ok {
		e.count(e.fallbacks)
	}
	return v, ok
}

func (e *Elim[T]) count(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}
