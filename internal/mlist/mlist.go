// Package mlist provides a timestamped FIFO node list used by the message
// queues. Every node carries an id tag and its enqueue time so consumers can
// shift selectively and expire stale entries.
package mlist

import (
	"container/list"
	"time"
)

// Node is a single queued entry.
type Node[T any] struct {
	ID       uint64
	Value    T
	PushedAt time.Time
}

// List is a doubly-linked FIFO of tagged nodes. It is not safe for concurrent
// use; callers synchronize externally.
type List[T any] struct {
	l *list.List
}

// New returns an empty list.
func New[T any]() *List[T] {
	return &List[T]{l: list.New()}
}

// Len returns the number of nodes.
func (m *List[T]) Len() int {
	return m.l.Len()
}

// Push appends a node tagged with id.
func (m *List[T]) Push(v T, id uint64) {
	m.l.PushBack(&Node[T]{ID: id, Value: v, PushedAt: time.Now()})
}

// Shift removes and returns the oldest node whose id matches. An id of 0
// matches any node. Nodes that do not match keep their relative order.
func (m *List[T]) Shift(id uint64) (*Node[T], bool) {
	for e := m.l.Front(); e != nil; e = e.Next() {
		n := e.Value.(*Node[T])
		if id == 0 || n.ID == id {
			m.l.Remove(e)
			return n, true
		}
	}
	return nil, false
}

// Expire removes all nodes older than maxAge and returns how many were
// dropped. Each dropped value is passed to onDrop if it is not nil.
func (m *List[T]) Expire(maxAge time.Duration, onDrop func(T)) int {
	cutoff := time.Now().Add(-maxAge)
	dropped := 0
	for e := m.l.Front(); e != nil; {
		next := e.Next()
		n := e.Value.(*Node[T])
		if n.PushedAt.Before(cutoff) {
			m.l.Remove(e)
			if onDrop != nil {
				onDrop(n.Value)
			}
			dropped++
		}
		e = next
	}
	return dropped
}
