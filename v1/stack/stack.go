package stack

import "sync/atomic"

// Backend is the minimal stack contract the elimination layer decorates.
//
// Push must always succeed. Pop returns the most recently pushed value that
// has not been popped yet, or false if the stack is empty.
type Backend[T any] interface {
	Push(value T)
	Pop() (T, bool)
}

type node[T any] struct {
	value T
	next  *node[T]
}

// Treiber is a lock-free LIFO stack based on a CAS'd head pointer.
//
// The zero value is an empty stack ready for use. Nodes removed by Pop are
// handed to the garbage collector; a concurrent Pop holding a reference to a
// node keeps it alive, so a reclaimed node can never reappear as the current
// head and the classic ABA hazard does not arise.
type Treiber[T any] struct {
	head atomic.Pointer[node[T]]
	size atomic.Int64
}

// NewTreiber returns a new empty stack.
func NewTreiber[T any]() *Treiber[T] {
	return &Treiber[T]{}
}

// Push adds value on top of the stack. It never blocks: on CAS failure the
// head is re-read and the swap retried.
func (s *Treiber[T]) Push(value T) {
	n := &node[T]{value: value}
	for {
		top := s.head.Load()
		n.next = top
		if s.head.CompareAndSwap(top, n) {
			s.size.Add(1)
			return
		}
	}
}

// Pop removes and returns the top value. It returns false if the stack is
// empty at the moment the head is read.
func (s *Treiber[T]) Pop() (T, bool) {
	for {
		top := s.head.Load()
		if top == nil {
			var zero T
			return zero, false
		}
		if s.head.CompareAndSwap(top, top.next) {
			s.size.Add(-1)
			return top.value, true
		}
	}
}

// Len reports the number of elements currently on the stack. The value is a
// snapshot and may be stale by the time it is observed.
func (s *Treiber[T]) Len() int {
	return int(s.size.Load())
}
