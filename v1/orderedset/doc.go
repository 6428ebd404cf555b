// Package orderedset provides a sorted set backed by a singly-linked list
// with one lock per node, traversed hand-over-hand: the lock on the next node
// is always acquired before the lock on the current one is released, and no
// operation ever holds more than two node locks. Operations on disjoint
// regions of the list therefore proceed in parallel.
package orderedset
