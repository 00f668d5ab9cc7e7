package sched

import (
	"container/heap"
	"time"
)

type entry struct {
	id       Handle
	due      time.Time
	interval time.Duration
	fn       func()
	order    uint64
	index    int
}

// timerHeap orders entries by due time, then by registration order.
type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].order < h[j].order
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// queue is the callback registry shared by Loop and Virtual. Not safe for concurrent use.
type queue struct {
	heap      timerHeap
	byID      map[Handle]*entry
	nextID    Handle
	nextOrder uint64
}

func newQueue() *queue {
	return &queue{byID: make(map[Handle]*entry)}
}

func (q *queue) add(due time.Time, interval time.Duration, fn func()) Handle {
	q.nextID++
	q.nextOrder++
	e := &entry{
		id:       q.nextID,
		due:      due,
		interval: interval,
		fn:       fn,
		order:    q.nextOrder,
	}
	heap.Push(&q.heap, e)
	q.byID[e.id] = e
	return e.id
}

func (q *queue) cancel(h Handle) bool {
	e, ok := q.byID[h]
	if !ok {
		return false
	}
	delete(q.byID, h)
	heap.Remove(&q.heap, e.index)
	return true
}

func (q *queue) nextDue() (time.Time, bool) {
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].due, true
}

// popDue removes the earliest entry due at or before now and returns its callback.
// Periodic entries are re-armed one interval after their previous due time.
func (q *queue) popDue(now time.Time) (func(), time.Time, bool) {
	if len(q.heap) == 0 {
		return nil, time.Time{}, false
	}
	e := q.heap[0]
	if e.due.After(now) {
		return nil, time.Time{}, false
	}
	due := e.due
	if e.interval > 0 {
		q.nextOrder++
		e.due = e.due.Add(e.interval)
		e.order = q.nextOrder
		heap.Fix(&q.heap, 0)
	} else {
		heap.Pop(&q.heap)
		delete(q.byID, e.id)
	}
	return e.fn, due, true
}

func (q *queue) len() int {
	return len(q.heap)
}
