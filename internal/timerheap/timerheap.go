// Package timerheap implements the I/O driver's timer facility: a
// binary min-heap keyed by deadline, built on container/heap as the
// standard library's own timer- and job-queue users do.
package timerheap

import "container/heap"

// Entry is one armed timer.
type Entry struct {
	Deadline int64 // UnixNano
	Token    uint64
	index    int
}

type innerHeap []*Entry

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return h[i].Deadline < h[j].Deadline }
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *innerHeap) Push(x interface{}) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Heap is a min-heap of Entry ordered by Deadline. The zero value is
// ready to use.
type Heap struct {
	h       innerHeap
	entries map[uint64]*Entry
}

// Push arms a new timer for token, expiring at deadlineNano.
func (t *Heap) Push(token uint64, deadlineNano int64) {
	if t.entries == nil {
		t.entries = make(map[uint64]*Entry)
	}
	e := &Entry{Deadline: deadlineNano, Token: token}
	t.entries[token] = e
	heap.Push(&t.h, e)
}

// Remove cancels the timer for token, if still armed. Reports whether
// a timer was actually removed.
func (t *Heap) Remove(token uint64) bool {
	e, ok := t.entries[token]
	if !ok {
		return false
	}
	delete(t.entries, token)
	heap.Remove(&t.h, e.index)
	return true
}

// Len reports the number of armed timers.
func (t *Heap) Len() int { return len(t.h) }

// NextDeadline returns the soonest deadline and true, or (0, false) if
// no timers are armed.
func (t *Heap) NextDeadline() (int64, bool) {
	if len(t.h) == 0 {
		return 0, false
	}
	return t.h[0].Deadline, true
}

// ExpireBefore pops and returns every entry whose deadline is <= now,
// in deadline order.
func (t *Heap) ExpireBefore(now int64) []Entry {
	var out []Entry
	for len(t.h) > 0 && t.h[0].Deadline <= now {
		e := heap.Pop(&t.h).(*Entry)
		delete(t.entries, e.Token)
		out = append(out, *e)
	}
	return out
}
