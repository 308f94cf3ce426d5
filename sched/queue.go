package sched

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// Entry is the externally visible form of a queued admission request.
type Entry struct {
	DeploymentID DeploymentID
	Priority     int
	Sequence     uint64
}

// queueEntry is the heap element; index is maintained by the heap for O(log n)
// removal by id.
type queueEntry struct {
	id       DeploymentID
	priority int
	sequence uint64
	index    int
}

// PriorityQueue is a bounded, mutex-guarded priority queue of pending
// deployment admissions. Ordering is a strict total order with no ties:
// priority descending, then enqueue sequence ascending (FIFO within a
// priority tier). The sequence counter is monotonically increasing for the
// lifetime of the queue and is never reused, which keeps scheduling decisions
// deterministic and starvation analysis unambiguous.
type PriorityQueue struct {
	mu      sync.Mutex
	max     int
	seq     atomic.Uint64
	entries entryHeap
	byID    map[DeploymentID]*queueEntry
}

// NewPriorityQueue creates an empty queue bounded at max entries.
func NewPriorityQueue(max int) *PriorityQueue {
	return &PriorityQueue{
		max:  max,
		byID: make(map[DeploymentID]*queueEntry),
	}
}

// Enqueue inserts a deployment with the given priority, assigning the next
// sequence number. Fails with ErrQueueFull at capacity and ErrAlreadyQueued
// if the deployment already holds an entry.
func (q *PriorityQueue) Enqueue(id DeploymentID, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, id)
	}
	if len(q.entries) >= q.max {
		return fmt.Errorf("%w: size %d", ErrQueueFull, q.max)
	}
	e := &queueEntry{id: id, priority: priority, sequence: q.seq.Inc()}
	heap.Push(&q.entries, e)
	q.byID[id] = e
	return nil
}

// Remove deletes the entry for id if present and reports whether it did.
// A no-op on absent ids: removal races (cancel vs. scheduler) are expected.
func (q *PriorityQueue) Remove(id DeploymentID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byID, id)
	return true
}

// Reprioritize removes the entry and re-inserts it with newPriority and a NEW
// sequence number, so the deployment lands behind entries already at that
// priority — no queue-jumping within a tier. Fails with ErrNotFound when the
// deployment is not currently queued.
func (q *PriorityQueue) Reprioritize(id DeploymentID, newPriority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("%w: deployment %s is not queued", ErrNotFound, id)
	}
	heap.Remove(&q.entries, e.index)
	e.priority = newPriority
	e.sequence = q.seq.Inc()
	heap.Push(&q.entries, e)
	return nil
}

// Cap returns the maximum number of entries the queue accepts.
func (q *PriorityQueue) Cap() int { return q.max }

// Len returns the number of queued entries.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether the deployment currently holds a queue entry.
func (q *PriorityQueue) Contains(id DeploymentID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

// Ordered returns the current entries in admission order. Each call reflects
// the queue state at call time; re-querying after mutation yields the updated
// order, not a frozen snapshot. The comparator is the same total order the
// heap maintains, so the result has no ties.
func (q *PriorityQueue) Ordered() []Entry {
	q.mu.Lock()
	out := make([]Entry, len(q.entries))
	for i, e := range q.entries {
		out[i] = Entry{DeploymentID: e.id, Priority: e.priority, Sequence: e.sequence}
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// entryHeap implements heap.Interface keyed (priority desc, sequence asc).
type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	// Primary: priority (higher first)
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	// Secondary: enqueue sequence (lower first, deterministic tie-breaker)
	return h[i].sequence < h[j].sequence
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
