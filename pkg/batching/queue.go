package batching

import "sync"

// Queue is an unbounded FIFO safe for concurrent producers and a single
// draining consumer. A deactivated queue drops new items.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	active bool
}

// NewQueue creates an active queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{active: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes a waiting consumer. It reports whether
// the item was accepted.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.active {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Broadcast()
	return true
}

// PushAll appends items in order under a single lock acquisition.
func (q *Queue[T]) PushAll(items []T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.active {
		return false
	}
	q.items = append(q.items, items...)
	q.cond.Broadcast()
	return true
}

// Flush removes and returns everything queued, in insertion order.
func (q *Queue[T]) Flush() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// WaitForItems blocks until the queue is non-empty or deactivated and
// reports whether the queue is still active.
func (q *Queue[T]) WaitForItems() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.active && len(q.items) == 0 {
		q.cond.Wait()
	}
	return q.active
}

// Deactivate stops accepting items and wakes every waiter.
func (q *Queue[T]) Deactivate() {
	q.mu.Lock()
	q.active = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// IsActive reports whether the queue accepts items.
func (q *Queue[T]) IsActive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
