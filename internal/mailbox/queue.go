package mailbox

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueCapacity bounds a [Queue] created with a non-positive capacity.
const DefaultQueueCapacity = 32

// Queue is a bounded FIFO that never blocks the producer. When full, the
// oldest pending item is dropped to make room. The consumer takes everything
// pending at once with [Queue.Drain].
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	cap   int

	dropped atomic.Uint64
}

// NewQueue returns an empty Queue holding at most capacity pending items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue[T]{items: make([]T, 0, capacity), cap: capacity}
}

// Push appends v. If the queue is full the oldest item is discarded.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == q.cap {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped.Add(1)
	}
	q.items = append(q.items, v)
}

// Drain returns all pending items in arrival order and empties the queue.
// It returns nil when nothing is pending.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := make([]T, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items were discarded because the queue was full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }
