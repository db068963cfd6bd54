/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Campaign-level types for the IMG! fuzzer engine: statistics with atomic
counters and records of the unique crashes found during a session.
*/

package core

import (
	"sync/atomic"
	"time"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// FuzzerStats tracks overall campaign statistics
// Counters are updated with atomic operations from many workers
type FuzzerStats struct {
	Executions          int64     `json:"executions"`
	Crashes             int64     `json:"crashes"`
	UniqueCrashes       int64     `json:"unique_crashes"`
	Timeouts            int64     `json:"timeouts"`
	Errors              int64     `json:"errors"`
	Paths               int64     `json:"paths"` // Distinct parser path signatures reached
	CorpusSize          int       `json:"corpus_size"`
	StartTime           time.Time `json:"start_time"`
	LastCrashTime       time.Time `json:"last_crash_time"`
	LastPathTime        time.Time `json:"last_path_time"`
	ExecutionsPerSecond float64   `json:"executions_per_second"`
}

// IncrementExecutions atomically increments the execution counter
func (s *FuzzerStats) IncrementExecutions() int64 {
	return atomic.AddInt64(&s.Executions, 1)
}

// IncrementCrashes atomically increments the crash counter
func (s *FuzzerStats) IncrementCrashes() {
	atomic.AddInt64(&s.Crashes, 1)
}

// IncrementUniqueCrashes atomically increments the unique crash counter
func (s *FuzzerStats) IncrementUniqueCrashes() int64 {
	return atomic.AddInt64(&s.UniqueCrashes, 1)
}

// IncrementTimeouts atomically increments the timeout counter
func (s *FuzzerStats) IncrementTimeouts() {
	atomic.AddInt64(&s.Timeouts, 1)
}

// IncrementErrors atomically increments the error counter
func (s *FuzzerStats) IncrementErrors() {
	atomic.AddInt64(&s.Errors, 1)
}

// IncrementPaths atomically increments the path counter
func (s *FuzzerStats) IncrementPaths() {
	atomic.AddInt64(&s.Paths, 1)
}

// snapshot copies the counters with atomic loads
func (s *FuzzerStats) snapshot() FuzzerStats {
	return FuzzerStats{
		Executions:    atomic.LoadInt64(&s.Executions),
		Crashes:       atomic.LoadInt64(&s.Crashes),
		UniqueCrashes: atomic.LoadInt64(&s.UniqueCrashes),
		Timeouts:      atomic.LoadInt64(&s.Timeouts),
		Errors:        atomic.LoadInt64(&s.Errors),
		Paths:         atomic.LoadInt64(&s.Paths),
		StartTime:     s.StartTime,
	}
}

// CrashRecord is a unique crash found during a campaign
type CrashRecord struct {
	Hash       string                `json:"hash"`
	TestCaseID string                `json:"test_case_id"`
	Crash      *interfaces.CrashInfo `json:"crash"`
	Count      int                   `json:"count"`
	FirstSeen  time.Time             `json:"first_seen"`
	Path       string                `json:"path,omitempty"` // Saved input file
}
