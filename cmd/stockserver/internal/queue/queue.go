package queue

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO shared by producers and consumers. Push blocks
// while the queue is full and Pop blocks while it is empty. Waiters are
// released in whatever order the runtime wakes channel receivers; there
// is no fairness queue on top.
//
// The context passed to Push and Pop is the only way to stop waiting;
// with context.Background() they block for as long as it takes.
type Queue[T any] struct {
	buf   []T
	front int // buf[front%n] is the oldest item
	rear  int // buf[rear%n] is the next free slot

	mu    sync.Mutex    // protects buf, front and rear
	slots chan struct{} // one token per free slot
	items chan struct{} // one token per queued item
}

func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	q := &Queue[T]{
		buf:   make([]T, capacity),
		slots: make(chan struct{}, capacity),
		items: make(chan struct{}, capacity),
	}
	for i := 0; i < capacity; i++ {
		q.slots <- struct{}{}
	}
	return q
}

// Push appends v, waiting for a free slot.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case <-q.slots:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.mu.Lock()
	q.buf[q.rear%len(q.buf)] = v
	q.rear++
	q.mu.Unlock()

	q.items <- struct{}{}
	return nil
}

// Pop removes and returns the oldest item, waiting for one to arrive.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-q.items:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	q.mu.Lock()
	i := q.front % len(q.buf)
	v := q.buf[i]
	q.buf[i] = zero
	q.front++
	q.mu.Unlock()

	q.slots <- struct{}{}
	return v, nil
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.rear - q.front
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }
