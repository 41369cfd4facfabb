// Package queue implements the bounded multi-producer/multi-consumer message
// queues that connect the HTTP frontend, the idle loop and detached workers.
package queue

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/mlist"
)

var queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "cadenza_queue_depth",
	Help: "Entries currently waiting in a message queue.",
}, []string{"queue"})

// Queue is a typed FIFO with an optional per-entry id tag. Shift returns
// entries in FIFO order among entries with a matching id and never reorders
// the rest. Pushes never block; consumers block with a timeout.
type Queue[T any] struct {
	name  string
	depth prometheus.Gauge

	mu     sync.Mutex
	items  *mlist.List[T]
	notify chan struct{}
}

// New creates an empty queue. The name shows up in logs and metric labels.
func New[T any](name string) *Queue[T] {
	return &Queue[T]{
		name:   name,
		depth:  queueDepth.WithLabelValues(name),
		items:  mlist.New[T](),
		notify: make(chan struct{}),
	}
}

// Push appends v tagged with id and wakes all waiters.
func (q *Queue[T]) Push(v T, id uint64) {
	q.mu.Lock()
	q.items.Push(v, id)
	q.depth.Set(float64(q.items.Len()))
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
}

// Shift removes and returns the oldest entry whose id matches (0 = any),
// waiting up to timeout for one to arrive. The second return is false on
// timeout.
func (q *Queue[T]) Shift(timeout time.Duration, id uint64) (T, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if n, ok := q.items.Shift(id); ok {
			q.depth.Set(float64(q.items.Len()))
			q.mu.Unlock()
			return n.Value, true
		}
		wait := q.notify
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false
		}
		t := time.NewTimer(remaining)
		select {
		case <-wait:
			t.Stop()
		case <-t.C:
			var zero T
			return zero, false
		}
	}
}

// TryShift is Shift without waiting.
func (q *Queue[T]) TryShift(id uint64) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n, ok := q.items.Shift(id); ok {
		q.depth.Set(float64(q.items.Len()))
		return n.Value, true
	}
	var zero T
	return zero, false
}

// Len returns the current entry count. A positive timeout bounds a wait for
// the queue to become non-empty first.
func (q *Queue[T]) Len(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		l := q.items.Len()
		wait := q.notify
		q.mu.Unlock()
		if l > 0 || timeout <= 0 {
			return l
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0
		}
		t := time.NewTimer(remaining)
		select {
		case <-wait:
			t.Stop()
		case <-t.C:
			return 0
		}
	}
}

// Expire drops entries older than maxAge and returns the count dropped. It is
// a maintenance call driven by the idle loop, not a timer.
func (q *Queue[T]) Expire(maxAge time.Duration) int {
	q.mu.Lock()
	dropped := q.items.Expire(maxAge, nil)
	q.depth.Set(float64(q.items.Len()))
	q.mu.Unlock()
	if dropped > 0 {
		log.Warn().Str("queue", q.name).Int("dropped", dropped).Msg("Expired stale queue entries")
	}
	return dropped
}
