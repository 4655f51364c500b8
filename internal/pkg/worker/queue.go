package worker

import (
	"context"
	"sync"
	"time"
)

// QueueStats holds lifetime counters for a queue
type QueueStats struct {
	Enqueued int64 `json:"enqueued"`
	Dequeued int64 `json:"dequeued"`
	Depth    int   `json:"depth"`
}

// Queue is an unbounded FIFO with a bounded blocking Pop
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	signal   chan struct{}
	enqueued int64
	dequeued int64
}

// NewQueue creates an empty queue
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{signal: make(chan struct{}, 1)}
}

// Push appends item at the back
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.enqueued++
	q.mu.Unlock()

	q.notify()
}

func (q *Queue[T]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryPop removes the front item without blocking
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.dequeued++
	return item, true
}

// Pop waits up to wait for an item. It returns false on timeout or when ctx is done.
func (q *Queue[T]) Pop(ctx context.Context, wait time.Duration) (T, bool) {
	var zero T
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		if item, ok := q.TryPop(); ok {
			if q.Len() > 0 {
				q.notify()
			}
			return item, true
		}

		select {
		case <-q.signal:
		case <-timer.C:
			return zero, false
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every queued item in order
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	q.dequeued += int64(len(items))
	return items
}

// Stats returns the queue counters
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Enqueued: q.enqueued, Dequeued: q.dequeued, Depth: len(q.items)}
}
