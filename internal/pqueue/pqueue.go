// Package pqueue implements a generic minimum priority queue on top of
// container/heap, used by the content store for staleness-ordered
// eviction.
package pqueue

import (
	"container/heap"

	"golang.org/x/exp/constraints"
)

type item[V any, P constraints.Ordered] struct {
	object   V
	priority P
	index    int
}

type wrapper[V any, P constraints.Ordered] []*item[V, P]

func (pq *wrapper[V, P]) Len() int { return len(*pq) }

func (pq *wrapper[V, P]) Less(i, j int) bool {
	return (*pq)[i].priority < (*pq)[j].priority
}

func (pq *wrapper[V, P]) Swap(i, j int) {
	(*pq)[i], (*pq)[j] = (*pq)[j], (*pq)[i]
	(*pq)[i].index = i
	(*pq)[j].index = j
}

func (pq *wrapper[V, P]) Push(x any) {
	it := x.(*item[V, P])
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *wrapper[V, P]) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// Item is a handle to a pushed value; keep it to call Update/Remove.
type Item[V any, P constraints.Ordered] struct {
	it *item[V, P]
}

// Queue is a minimum priority queue: Pop always returns the lowest-priority
// element.
type Queue[V any, P constraints.Ordered] struct {
	pq wrapper[V, P]
}

// New constructs an empty Queue. The zero value is also usable.
func New[V any, P constraints.Ordered]() Queue[V, P] {
	return Queue[V, P]{}
}

// Len returns the number of queued elements.
func (q *Queue[V, P]) Len() int { return q.pq.Len() }

// Push inserts value with the given priority and returns a handle for
// later updates or removal.
func (q *Queue[V, P]) Push(value V, priority P) Item[V, P] {
	it := &item[V, P]{object: value, priority: priority}
	heap.Push(&q.pq, it)
	return Item[V, P]{it: it}
}

// Peek returns the minimum-priority element without removing it.
func (q *Queue[V, P]) Peek() V { return q.pq[0].object }

// PeekPriority returns the minimum priority in the queue.
func (q *Queue[V, P]) PeekPriority() P { return q.pq[0].priority }

// Pop removes and returns the minimum-priority element.
func (q *Queue[V, P]) Pop() V {
	return heap.Pop(&q.pq).(*item[V, P]).object
}

// Update changes both the value and priority of a previously pushed item.
func (q *Queue[V, P]) Update(h Item[V, P], value V, priority P) {
	h.it.object = value
	q.UpdatePriority(h, priority)
}

// UpdatePriority re-heapifies after changing an item's priority.
func (q *Queue[V, P]) UpdatePriority(h Item[V, P], priority P) {
	h.it.priority = priority
	heap.Fix(&q.pq, h.it.index)
}

// Remove removes an arbitrary item from the queue.
func (q *Queue[V, P]) Remove(h Item[V, P]) {
	if h.it.index < 0 {
		return
	}
	heap.Remove(&q.pq, h.it.index)
}

// Value returns the value stored in an item handle.
func (h Item[V, P]) Value() V { return h.it.object }
