// Package queue holds records between a producer and a batch writer.
package queue

import "sync"

// Queue is a mutex-guarded FIFO that is emptied a batch at a time. With a
// limit set, the oldest records give way once the queue is full.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped int
}

// New returns an empty queue. A limit of zero or less means unbounded.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.trim()
}

// Drain hands over everything queued and leaves the queue empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch
}

// Restore puts a batch that failed to write back ahead of anything pushed
// since it was drained.
func (q *Queue[T]) Restore(batch []T) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(batch[:len(batch):len(batch)], q.items...)
	q.trim()
}

func (q *Queue[T]) trim() {
	if q.limit <= 0 || len(q.items) <= q.limit {
		return
	}
	over := len(q.items) - q.limit
	q.dropped += over
	q.items = append(q.items[:0:0], q.items[over:]...)
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped counts records discarded to honour the limit.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
