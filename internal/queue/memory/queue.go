// Package memory provides the in-process FIFO queues that connect pipeline stages.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// item carries either a value or the end-of-stream sentinel.
type item[T any] struct {
	value T
	end   bool
}

// Queue is a FIFO queue with context-aware operations and an end-of-stream
// sentinel that is distinct from every value of T. A positive capacity bounds
// the queue and makes Push block while it is full; zero or negative capacity
// makes it unbounded.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []item[T]
	capacity int

	notEmpty chan struct{}
	notFull  chan struct{}

	unfinished int
	drained    chan struct{}
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

// Push appends v, blocking while the queue is full or until ctx ends.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	if err := q.put(ctx, item[T]{value: v}); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	return nil
}

// PushEnd appends one end-of-stream sentinel.
func (q *Queue[T]) PushEnd(ctx context.Context) error {
	if err := q.put(ctx, item[T]{end: true}); err != nil {
		return fmt.Errorf("enqueue sentinel canceled: %w", err)
	}
	return nil
}

// Pop removes the oldest entry. ok is false when the entry was a sentinel.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool, err error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			var zero item[T]
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			signal(q.notFull)
			if remaining > 0 {
				signal(q.notEmpty)
			}
			return it.value, !it.end, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return v, false, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.notEmpty:
		}
	}
}

// TaskDone marks one previously popped entry, sentinel included, as processed.
func (q *Queue[T]) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		panic("memory queue: TaskDone called more times than entries were pushed")
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.drained)
	}
}

// Join blocks until every pushed entry has been marked with TaskDone.
func (q *Queue[T]) Join(ctx context.Context) error {
	q.mu.Lock()
	if q.unfinished == 0 {
		q.mu.Unlock()
		return nil
	}
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("join canceled: %w", ctx.Err())
	case <-drained:
		return nil
	}
}

// Len returns the number of entries currently buffered.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) put(ctx context.Context, it item[T]) error {
	for {
		q.mu.Lock()
		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, it)
			if q.unfinished == 0 {
				q.drained = make(chan struct{})
			}
			q.unfinished++
			hasRoom := q.capacity == 0 || len(q.items) < q.capacity
			q.mu.Unlock()

			signal(q.notEmpty)
			if hasRoom {
				signal(q.notFull)
			}
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notFull:
		}
	}
}

// signal wakes at most one waiter without blocking; waiters re-check state under the lock.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
