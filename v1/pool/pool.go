package pool

import (
	"errors"
	"sync"
	"sync/atomic"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirkobrombin/go-conc/v1/metrics"
)

// Job is a unit of work executed exactly once on an arbitrary worker.
type Job func()

// Pool runs jobs on a fixed set of worker goroutines consuming a shared
// queue. The queue is unbounded, so Execute returns as soon as the job is
// enqueued. The outstanding-job count is incremented at enqueue and
// decremented at completion, so Join can never return while unconsumed jobs
// remain in the queue.
type Pool struct {
	id      string
	workers int

	mu          sync.Mutex
	notEmpty    sync.Cond // signalled on enqueue and on Close
	idle        sync.Cond // broadcast when outstanding reaches zero
	queue       []Job
	outstanding int // jobs enqueued and not yet completed
	closed      bool

	wg sync.WaitGroup

	panicMu sync.Mutex
	panics  []error

	// Observability counters.
	submitted atomic.Int64
	completed atomic.Int64
	inFlight  atomic.Int64

	jobCounter    prometheus.Counter
	inFlightGauge prometheus.Gauge
	queueGauge    prometheus.Gauge
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics enables Prometheus metrics collection using the provided
// registerer. Series carry a "pool" const-label with the pool's unique ID so
// multiple pools can share a registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Pool) {
		labels := prometheus.Labels{"pool": p.id}
		p.jobCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "conc_pool_jobs_completed_total",
			Help:        "Total number of jobs executed to completion (including panicked jobs)",
			ConstLabels: labels,
		})
		p.inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "conc_pool_jobs_in_flight",
			Help:        "Number of jobs currently executing",
			ConstLabels: labels,
		})
		p.queueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "conc_pool_queue_depth",
			Help:        "Number of jobs waiting in the queue",
			ConstLabels: labels,
		})
		workersGauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "conc_pool_workers",
			Help:        "Worker count, fixed at construction",
			ConstLabels: labels,
		})
		workersGauge.Set(float64(p.workers))
		reg.MustRegister(p.jobCounter, p.inFlightGauge, p.queueGauge, workersGauge)
	}
}

// New creates a pool with n worker goroutines. Workers start immediately and
// process jobs until Close is called. Panics if n <= 0.
func New(n int, opts ...Option) *Pool {
	if n <= 0 {
		panic("conc: pool.New requires n > 0")
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		panic(err)
	}
	p := &Pool{
		id:      id,
		workers: n,
	}
	p.notEmpty.L = &p.mu
	p.idle.L = &p.mu
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(n)
	for range n {
		go p.worker()
	}
	metrics.PoolGauge.Inc()
	return p
}

// ID returns the pool's unique identifier.
func (p *Pool) ID() string {
	return p.id
}

// Execute enqueues job for asynchronous execution. It never blocks beyond
// the enqueue itself. Calling Execute after Close is a programmer error and
// panics.
func (p *Pool) Execute(job Job) {
	if job == nil {
		panic("conc: Execute requires a non-nil job")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		panic("conc: Execute called after Close")
	}
	p.queue = append(p.queue, job)
	p.outstanding++
	p.notEmpty.Signal()
	p.mu.Unlock()
	p.submitted.Add(1)
	if p.queueGauge != nil {
		p.queueGauge.Inc()
	}
}

// Join blocks until every job enqueued before the call has finished
// executing. It returns immediately when no jobs are outstanding, and it
// also counts jobs enqueued while it waits.
func (p *Pool) Join() {
	p.mu.Lock()
	for p.outstanding > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// Close stops accepting jobs, lets the workers drain the queue and joins
// every worker goroutine. It returns the panics captured from jobs, joined
// into a single error, or nil if every job completed normally. Close is
// idempotent; subsequent calls return the same result.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.notEmpty.Broadcast()
		metrics.PoolGauge.Dec()
	}
	p.mu.Unlock()
	p.wg.Wait()

	p.panicMu.Lock()
	defer p.panicMu.Unlock()
	return errors.Join(p.panics...)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.notEmpty.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		if p.queueGauge != nil {
			p.queueGauge.Dec()
		}
		p.run(job)
	}
}

// run executes a single job, capturing panics and settling the outstanding
// count whether the job succeeds or not.
func (p *Pool) run(job Job) {
	p.inFlight.Add(1)
	if p.inFlightGauge != nil {
		p.inFlightGauge.Inc()
	}
	defer func() {
		if r := recover(); r != nil {
			p.panicMu.Lock()
			p.panics = append(p.panics, newPanicError(r))
			p.panicMu.Unlock()
		}
		p.inFlight.Add(-1)
		if p.inFlightGauge != nil {
			p.inFlightGauge.Dec()
		}
		p.completed.Add(1)
		if p.jobCounter != nil {
			p.jobCounter.Inc()
		}
		p.mu.Lock()
		p.outstanding--
		if p.outstanding == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}()
	job()
}

// Stats provides a point-in-time snapshot of pool activity.
type Stats struct {
	Submitted  int64 // total jobs submitted
	Completed  int64 // jobs finished (including panicked)
	InFlight   int64 // jobs currently executing
	QueueDepth int   // jobs waiting in the queue
	Workers    int   // worker count (fixed at creation)
}

// Metrics returns current counters for the pool.
func (p *Pool) Metrics() Stats {
	p.mu.Lock()
	depth := len(p.queue)
	p.mu.Unlock()
	return Stats{
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		InFlight:   p.inFlight.Load(),
		QueueDepth: depth,
		Workers:    p.workers,
	}
}
