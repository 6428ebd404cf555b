// Package pool provides a fixed-size worker pool with a completion barrier.
// Jobs are queued without bound, so Execute never blocks the caller; Join
// blocks until every job queued before the call has finished; Close drains
// the queue, joins every worker and surfaces any job panic to the caller.
package pool
