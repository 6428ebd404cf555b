// Package stack provides a lock-free LIFO stack and an elimination-backoff
// layer that pairs concurrent pushes and pops directly to reduce contention
// on the shared stack. Both tolerate any number of concurrent callers and
// never block; under contention operations retry on CAS failure (the
// elimination window bounds how long a retry waits for a partner).
package stack
