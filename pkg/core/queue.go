/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: queue.go
Description: Priority queue for test case scheduling. Wraps container/heap behind a
mutex so workers can push and pop concurrently; ties are broken by insertion
order so equal-priority inputs run first-in first-out.
*/

package core

import (
	"container/heap"
	"sync"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

type queueItem struct {
	testCase *interfaces.TestCase
	priority int
	seq      uint64
}

type itemHeap []queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queueItem{}
	*h = old[:n-1]
	return item
}

// PriorityQueue is a thread-safe max-priority queue of test cases
type PriorityQueue struct {
	items itemHeap
	seq   uint64
	mu    sync.Mutex

	insertions int64
	removals   int64
}

// NewPriorityQueue creates an empty queue
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{items: make(itemHeap, 0, 1024)}
}

// Put adds a test case using its current priority
func (pq *PriorityQueue) Put(testCase *interfaces.TestCase) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.seq++
	heap.Push(&pq.items, queueItem{testCase: testCase, priority: testCase.Priority, seq: pq.seq})
	pq.insertions++
}

// Get removes and returns the highest priority test case, nil when empty
func (pq *PriorityQueue) Get() *interfaces.TestCase {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.items) == 0 {
		return nil
	}
	pq.removals++
	return heap.Pop(&pq.items).(queueItem).testCase
}

// Size returns the number of queued test cases
func (pq *PriorityQueue) Size() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}

// IsEmpty returns true if the queue is empty
func (pq *PriorityQueue) IsEmpty() bool {
	return pq.Size() == 0
}

// Clear drops every queued test case
func (pq *PriorityQueue) Clear() {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.items = pq.items[:0]
}

// GetStats returns queue counters
func (pq *PriorityQueue) GetStats() map[string]interface{} {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	return map[string]interface{}{
		"size":       len(pq.items),
		"insertions": pq.insertions,
		"removals":   pq.removals,
	}
}
