/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scheduler.go
Description: Scheduler interface and implementations for picking the next test case.
PriorityScheduler drains a priority queue; PathScheduler favours inputs that
reached a parser path signature seen fewer times.
*/

package core

import (
	"sync"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// Scheduler defines the interface for pluggable test case scheduling
type Scheduler interface {
	// Next returns the next test case to execute, or nil if empty
	Next() *interfaces.TestCase
	// Push adds a test case to the scheduler
	Push(tc *interfaces.TestCase)
	// Size returns the number of queued test cases
	Size() int
	// Reset drops every queued test case
	Reset()
	// Stats returns queue counters
	Stats() map[string]interface{}
}

// PriorityScheduler implements Scheduler using a PriorityQueue
type PriorityScheduler struct {
	queue *PriorityQueue
}

// NewPriorityScheduler creates a new PriorityScheduler instance
func NewPriorityScheduler() *PriorityScheduler {
	return &PriorityScheduler{queue: NewPriorityQueue()}
}

// Next returns the highest priority test case or nil if empty
func (s *PriorityScheduler) Next() *interfaces.TestCase { return s.queue.Get() }

// Push adds a test case to the scheduler
func (s *PriorityScheduler) Push(tc *interfaces.TestCase) { s.queue.Put(tc) }

// Size returns the number of queued test cases
func (s *PriorityScheduler) Size() int { return s.queue.Size() }

// Reset drops every queued test case
func (s *PriorityScheduler) Reset() { s.queue.Clear() }

// Stats returns the queue counters
func (s *PriorityScheduler) Stats() map[string]interface{} { return s.queue.GetStats() }

// PathScheduler boosts test cases whose recorded path signature is rare.
// The engine tags each test case with metadata["path"] after execution.
type PathScheduler struct {
	queue *PriorityQueue
	hits  map[string]int
	mu    sync.Mutex
}

// NewPathScheduler creates a new PathScheduler instance
func NewPathScheduler() *PathScheduler {
	return &PathScheduler{
		queue: NewPriorityQueue(),
		hits:  make(map[string]int),
	}
}

// Next returns the next test case or nil if empty
func (s *PathScheduler) Next() *interfaces.TestCase { return s.queue.Get() }

// Push queues tc with a bonus inversely related to how often its path was hit
func (s *PathScheduler) Push(tc *interfaces.TestCase) {
	path, _ := tc.Metadata["path"].(string)
	if path != "" {
		s.mu.Lock()
		s.hits[path]++
		hits := s.hits[path]
		s.mu.Unlock()

		queued := *tc
		queued.Priority += 100 / hits
		s.queue.Put(&queued)
		return
	}
	s.queue.Put(tc)
}

// Size returns the number of queued test cases
func (s *PathScheduler) Size() int { return s.queue.Size() }

// Reset drops queued test cases and forgets path hit counts
func (s *PathScheduler) Reset() {
	s.queue.Clear()
	s.mu.Lock()
	s.hits = make(map[string]int)
	s.mu.Unlock()
}

// Stats returns the queue counters plus the number of distinct paths seen
func (s *PathScheduler) Stats() map[string]interface{} {
	stats := s.queue.GetStats()
	s.mu.Lock()
	stats["paths"] = len(s.hits)
	s.mu.Unlock()
	return stats
}

// NewScheduler returns the scheduler registered under name,
// falling back to the priority scheduler
func NewScheduler(name string) Scheduler {
	switch name {
	case "path", "coverage-guided":
		return NewPathScheduler()
	default:
		return NewPriorityScheduler()
	}
}
