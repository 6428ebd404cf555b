// Package cache provides a single-flight memoizing cache: the computation
// for an absent key runs at most once no matter how many callers request it
// concurrently, while requests for distinct keys proceed independently. Ready
// values live in a pluggable store; the default keeps every value for the
// lifetime of the cache, and a ristretto-backed store bounds memory at the
// cost of recomputing evicted keys.
package cache
