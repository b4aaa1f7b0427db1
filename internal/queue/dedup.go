// Package queue provides the FIFO waiting list used by the matchmaker.
package queue

import "container/list"

// Dedup is a FIFO queue that holds each value at most once.
// Enqueue, DequeueFront, Remove and Contains are all O(1): elements live in a
// doubly linked list and an index maps each value to its element.
// Dedup is not safe for concurrent use.
type Dedup[T comparable] struct {
	order *list.List
	index map[T]*list.Element
}

// NewDedup returns an empty queue.
func NewDedup[T comparable]() *Dedup[T] {
	return &Dedup[T]{
		order: list.New(),
		index: make(map[T]*list.Element),
	}
}

// Enqueue appends v at the tail. It returns false and leaves the queue
// untouched if v is already queued.
func (q *Dedup[T]) Enqueue(v T) bool {
	if _, ok := q.index[v]; ok {
		return false
	}
	q.index[v] = q.order.PushBack(v)
	return true
}

// DequeueFront removes and returns the head. ok is false on an empty queue.
func (q *Dedup[T]) DequeueFront() (v T, ok bool) {
	front := q.order.Front()
	if front == nil {
		return v, false
	}
	v = q.order.Remove(front).(T)
	delete(q.index, v)
	return v, true
}

// Remove unlinks v from wherever it sits. It returns false if v was not queued.
func (q *Dedup[T]) Remove(v T) bool {
	el, ok := q.index[v]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.index, v)
	return true
}

// Contains reports whether v is queued.
func (q *Dedup[T]) Contains(v T) bool {
	_, ok := q.index[v]
	return ok
}

// Len returns the number of queued values.
func (q *Dedup[T]) Len() int {
	return q.order.Len()
}

// Items returns the queued values front to back.
func (q *Dedup[T]) Items() []T {
	out := make([]T, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(T))
	}
	return out
}
