// Package dsa holds small, reusable data structures shared across the
// fleet simulation's infrastructure packages.
package dsa

import "sync"

// ─── Rank Queue (Min-Heap) ──────────────────────────────────────────────────
//
// Operations:
//   Push:    O(log n) — sift up
//   Pop:     O(log n) — sift down (extract-min)
//   Peek:    O(1)
//   Len:     O(1)
//
// Unlike a general task scheduler's priority queue, nothing in this
// repository's domain carries a notion of task priority that should be
// aged toward the front of the queue: the simulator clock's callbacks fire
// in strict time order, and the central allocator's round-robin selection
// is a strict least-assignments order. So this queue orders purely by a
// caller-supplied Rank, with submission order as the tie-break, and has no
// starvation-boost mechanism to carry over.

// HeapItem is an element in the rank queue.
type HeapItem struct {
	Key   string // Unique identifier (e.g. a callback or participant ID)
	Rank  int64  // Ordering key, lower dequeues first
	Seq   uint64 // Tie-break: insertion order, set by Push
	Value any    // Payload (caller stores whatever they need)
}

// RankQueue is a thread-safe min-heap ordered by HeapItem.Rank, ties
// broken by insertion order. Used as the simulator clock's pending-callback
// timer wheel (Rank = fire time in nanoseconds) and as the central
// allocator's per-ability round-robin selector (Rank = assignment count).
type RankQueue struct {
	mu   sync.Mutex
	heap []HeapItem
	next uint64
}

// NewRankQueue creates an empty rank queue.
func NewRankQueue() *RankQueue {
	return &RankQueue{}
}

// Push adds an item to the queue. O(log n).
func (pq *RankQueue) Push(item HeapItem) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	item.Seq = pq.next
	pq.next++
	pq.heap = append(pq.heap, item)
	pq.siftUp(len(pq.heap) - 1)
}

// Pop removes and returns the lowest-rank item. O(log n). Returns the item
// and true, or the zero value and false if empty.
func (pq *RankQueue) Pop() (HeapItem, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.heap) == 0 {
		return HeapItem{}, false
	}

	top := pq.heap[0]
	last := len(pq.heap) - 1
	pq.heap[0] = pq.heap[last]
	pq.heap = pq.heap[:last]
	if len(pq.heap) > 0 {
		pq.siftDown(0)
	}
	return top, true
}

// Peek returns the lowest-rank item without removing it. O(1).
func (pq *RankQueue) Peek() (HeapItem, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.heap) == 0 {
		return HeapItem{}, false
	}
	return pq.heap[0], true
}

// Len returns the number of items in the queue.
func (pq *RankQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.heap)
}

// less returns true if item i should be dequeued before item j.
func (pq *RankQueue) less(i, j int) bool {
	if pq.heap[i].Rank != pq.heap[j].Rank {
		return pq.heap[i].Rank < pq.heap[j].Rank
	}
	return pq.heap[i].Seq < pq.heap[j].Seq
}

// siftUp restores heap property after insertion.
func (pq *RankQueue) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if pq.less(idx, parent) {
			pq.heap[idx], pq.heap[parent] = pq.heap[parent], pq.heap[idx]
			idx = parent
		} else {
			break
		}
	}
}

// siftDown restores heap property after extraction.
func (pq *RankQueue) siftDown(idx int) {
	n := len(pq.heap)
	for {
		smallest := idx
		left := 2*idx + 1
		right := 2*idx + 2

		if left < n && pq.less(left, smallest) {
			smallest = left
		}
		if right < n && pq.less(right, smallest) {
			smallest = right
		}
		if smallest == idx {
			break
		}
		pq.heap[idx], pq.heap[smallest] = pq.heap[smallest], pq.heap[idx]
		idx = smallest
	}
}
