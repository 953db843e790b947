package routing

import "container/heap"

// Item is one (element, priority) record of a PriorityQueue.
type Item[T any] struct {
	Element  T
	Priority float64
	seq      uint64
}

// PriorityQueue is a min-priority multiset. Enqueueing an element that is
// already present adds a second record instead of updating the first, so
// callers must be prepared to dequeue stale entries. Records with equal
// priority come out in insertion order.
type PriorityQueue[T any] struct {
	items itemHeap[T]
	next  uint64
}

// NewPriorityQueue returns an empty queue with room for capacity records.
func NewPriorityQueue[T any](capacity int) *PriorityQueue[T] {
	return &PriorityQueue[T]{items: make(itemHeap[T], 0, capacity)}
}

// Enqueue adds element with the given priority.
func (q *PriorityQueue[T]) Enqueue(element T, priority float64) {
	heap.Push(&q.items, Item[T]{Element: element, Priority: priority, seq: q.next})
	q.next++
}

// Dequeue removes and returns the minimum-priority record. ok is false when
// the queue is empty.
func (q *PriorityQueue[T]) Dequeue() (item Item[T], ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	return heap.Pop(&q.items).(Item[T]), true
}

// IsEmpty reports whether no records remain.
func (q *PriorityQueue[T]) IsEmpty() bool { return len(q.items) == 0 }

// Len returns the number of records, stale ones included.
func (q *PriorityQueue[T]) Len() int { return len(q.items) }

type itemHeap[T any] []Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].Priority == h[j].Priority {
		return h[i].seq < h[j].seq
	}
	return h[i].Priority < h[j].Priority
}

func (h itemHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap[T]) Push(x any) { *h = append(*h, x.(Item[T])) }

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
