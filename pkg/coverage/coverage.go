/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coverage.go
Description: Path coverage for the IMG! fuzzer. A PathSet records the parser path
signatures reached during a campaign and how often each was hit, which is the
feedback signal the engine uses to keep interesting inputs.
*/

package coverage

import (
	"sort"
	"sync"
	"time"
)

// PathInfo describes one reached path signature
type PathInfo struct {
	Path      string    `json:"path"`
	Hits      int       `json:"hits"`
	FirstSeen time.Time `json:"first_seen"`
	FirstID   string    `json:"first_id"` // Test case that reached it first
}

// PathSet is a thread-safe set of path signatures with hit counts
type PathSet struct {
	mu    sync.RWMutex
	paths map[string]*PathInfo
	last  time.Time
}

// NewPathSet creates an empty PathSet
func NewPathSet() *PathSet {
	return &PathSet{paths: make(map[string]*PathInfo)}
}

// Record counts a hit on path and reports whether it was new.
// An empty path is ignored.
func (s *PathSet) Record(path, testCaseID string) bool {
	if path == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.paths[path]; ok {
		info.Hits++
		return false
	}
	now := time.Now()
	s.paths[path] = &PathInfo{Path: path, Hits: 1, FirstSeen: now, FirstID: testCaseID}
	s.last = now
	return true
}

// Len returns the number of distinct paths
func (s *PathSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// LastNew returns when the most recent new path was recorded
func (s *PathSet) LastNew() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Counts returns a copy of the hit counts by path
func (s *PathSet) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.paths))
	for path, info := range s.paths {
		counts[path] = info.Hits
	}
	return counts
}

// Snapshot returns every path ordered by first discovery
func (s *PathSet) Snapshot() []PathInfo {
	s.mu.RLock()
	out := make([]PathInfo, 0, len(s.paths))
	for _, info := range s.paths {
		out = append(out, *info)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].Path < out[j].Path
	})
	return out
}
