package orderedset

import (
	"cmp"
	"iter"
	"sync"
	"sync/atomic"
)

// node links a value into the list. mu guards next; value is immutable once
// the node is linked.
type node[T cmp.Ordered] struct {
	value T
	mu    sync.Mutex
	next  *node[T]
}

// Set is a concurrent sorted set. Keys are kept in strictly increasing order
// with no duplicates at every moment, even mid-mutation: any two adjacent
// nodes observed under their locks are correctly ordered.
//
// The head pointer lives in a virtual zeroth node embedded in the Set, so
// inserting or removing at the front takes the same code path as interior
// updates.
type Set[T cmp.Ordered] struct {
	head node[T]
	size atomic.Int64
}

// New returns a new empty set.
func New[T cmp.Ordered]() *Set[T] {
	return &Set[T]{}
}

// find walks the list until it reaches the first node whose value is >= key.
// It returns the predecessor and that node (nil at the tail), with both locks
// held: prev.mu guards prev.next, and curr.mu (when curr != nil) pins curr's
// successor link. Locks are only ever taken in list order.
func (s *Set[T]) find(key T) (prev, curr *node[T]) {
	prev = &s.head
	prev.mu.Lock()
	curr = prev.next
	for curr != nil {
		curr.mu.Lock()
		if curr.value >= key {
			return prev, curr
		}
		prev.mu.Unlock()
		prev = curr
		curr = curr.next
	}
	return prev, nil
}

// Contains reports whether key is in the set.
func (s *Set[T]) Contains(key T) bool {
	prev, curr := s.find(key)
	found := curr != nil && curr.value == key
	if curr != nil {
		curr.mu.Unlock()
	}
	prev.mu.Unlock()
	return found
}

// Insert adds key to the set. It returns false, leaving the set unchanged,
// if the key is already present.
func (s *Set[T]) Insert(key T) bool {
	prev, curr := s.find(key)
	if curr != nil && curr.value == key {
		curr.mu.Unlock()
		prev.mu.Unlock()
		return false
	}
	prev.next = &node[T]{value: key, next: curr}
	if curr != nil {
		curr.mu.Unlock()
	}
	prev.mu.Unlock()
	s.size.Add(1)
	return true
}

// Remove deletes key from the set and returns it. It returns false if the
// key is absent. The target stays locked until it is fully unlinked, so no
// traversal can step onto a half-removed node.
func (s *Set[T]) Remove(key T) (T, bool) {
	prev, curr := s.find(key)
	if curr == nil || curr.value != key {
		if curr != nil {
			curr.mu.Unlock()
		}
		prev.mu.Unlock()
		var zero T
		return zero, false
	}
	prev.next = curr.next
	curr.mu.Unlock()
	prev.mu.Unlock()
	s.size.Add(-1)
	// curr is unreachable from the set now; the GC frees it once the last
	// concurrent reader that already held it moves on.
	return curr.value, true
}

// Len reports the number of elements. The value is a snapshot and may be
// stale under concurrent mutation.
func (s *Set[T]) Len() int {
	return int(s.size.Load())
}

// All returns an iterator over the elements in ascending order. The
// traversal is lock-coupled, not a snapshot: each yielded element was live
// and correctly ordered at the moment it was visited, but elements inserted
// or removed behind the iterator's position are not reflected.
//
// The iterator holds one node lock while yielding; operating on the same set
// from inside the loop body deadlocks.
func (s *Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		prev := &s.head
		prev.mu.Lock()
		curr := prev.next
		for curr != nil {
			curr.mu.Lock()
			prev.mu.Unlock()
			if !yield(curr.value) {
				curr.mu.Unlock()
				return
			}
			prev = curr
			curr = curr.next
		}
		prev.mu.Unlock()
	}
}
