package containers

import "errors"

var (
	ErrQueueFull  = errors.New("queue is full")
	ErrQueueEmpty = errors.New("queue is empty")
)

// RingQueue is a fixed capacity FIFO. It never grows, so a full queue is
// reported to the caller instead of reallocating.
type RingQueue[T any] struct {
	items []T
	head  int
	n     int
}

func NewRingQueue[T any](capacity int) *RingQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingQueue[T]{items: make([]T, capacity)}
}

func (rq *RingQueue[T]) slot(i int) int {
	return (rq.head + i) % len(rq.items)
}

// Enqueue appends value at the tail.
func (rq *RingQueue[T]) Enqueue(value T) error {
	if rq.IsFull() {
		return ErrQueueFull
	}
	rq.items[rq.slot(rq.n)] = value
	rq.n++
	return nil
}

// Dequeue removes the head. The vacated slot is zeroed so the queue does not
// keep the value reachable.
func (rq *RingQueue[T]) Dequeue() (T, error) {
	var zero T
	if rq.n == 0 {
		return zero, ErrQueueEmpty
	}
	value := rq.items[rq.head]
	rq.items[rq.head] = zero
	rq.head = rq.slot(1)
	rq.n--
	return value, nil
}

func (rq *RingQueue[T]) Peek() (T, error) {
	if rq.n == 0 {
		var zero T
		return zero, ErrQueueEmpty
	}
	return rq.items[rq.head], nil
}

// DrainWhile dequeues from the head for as long as keep reports true,
// passing each removed value to fn. It returns the number removed.
// A nil keep drains everything.
func (rq *RingQueue[T]) DrainWhile(keep func(T) bool, fn func(T)) int {
	removed := 0
	for rq.n > 0 {
		if keep != nil && !keep(rq.items[rq.head]) {
			break
		}
		v, _ := rq.Dequeue()
		fn(v)
		removed++
	}
	return removed
}

func (rq *RingQueue[T]) Len() int      { return rq.n }
func (rq *RingQueue[T]) Cap() int      { return len(rq.items) }
func (rq *RingQueue[T]) IsEmpty() bool { return rq.n == 0 }
func (rq *RingQueue[T]) IsFull() bool  { return rq.n == len(rq.items) }
