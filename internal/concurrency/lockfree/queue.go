// Licensed under the MIT License. See LICENSE file in the project root for details.

package lockfree

import "sync/atomic"

type qnode[T any] struct {
	value T
	next  atomic.Pointer[qnode[T]]
}

// Queue is a Michael-Scott multi-producer multi-consumer queue.
type Queue[T any] struct {
	head atomic.Pointer[qnode[T]]
	tail atomic.Pointer[qnode[T]]
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	sentinel := &qnode[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push appends a value at the tail.
func (q *Queue[T]) Push(v T) {
	n := &qnode[T]{value: v}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// tail is lagging, help it along
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			return
		}
	}
}

// TryPop removes and returns the head value.
func (q *Queue[T]) TryPop() (T, bool) {
	return q.TryPopIf(nil)
}

// TryPopIf removes and returns the head value if pred accepts it. A nil pred
// accepts everything. The head is left in place when pred rejects it.
func (q *Queue[T]) TryPopIf(pred func(T) bool) (T, bool) {
	var zero T
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return zero, false
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if pred != nil && !pred(next.value) {
			return zero, false
		}
		if q.head.CompareAndSwap(head, next) {
			// next becomes the new sentinel; its value stays reachable until the
			// following pop, concurrent poppers may still be reading it.
			return next.value, true
		}
	}
}

// Empty reports whether the queue had no values at the time of the call.
func (q *Queue[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}
