/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: worker.go
Description: Worker that runs test cases through the configured executor and keeps
per-worker counters for the campaign summary.
*/

package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Worker executes test cases on behalf of the engine
type Worker struct {
	ID       int
	executor interfaces.Executor
	logger   *logrus.Logger

	executions int64
	crashes    int64
	errors     int64
	busy       time.Duration
	startTime  time.Time
	mu         sync.RWMutex
}

// NewWorker creates a new worker instance
func NewWorker(id int, executor interfaces.Executor, logger *logrus.Logger) *Worker {
	return &Worker{
		ID:        id,
		executor:  executor,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Execute runs a test case and returns the execution result
func (w *Worker) Execute(testCase *interfaces.TestCase) (*interfaces.ExecutionResult, error) {
	start := time.Now()
	result, err := w.executor.Execute(testCase)
	elapsed := time.Since(start)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.executions++
	w.busy += elapsed

	if err != nil {
		w.errors++
		w.logger.WithFields(logrus.Fields{
			"worker":       w.ID,
			"test_case_id": testCase.ID,
		}).Errorf("Execution failed: %v", err)
		return nil, fmt.Errorf("worker %d: execution failed: %w", w.ID, err)
	}

	if result.Status == interfaces.StatusCrash {
		w.crashes++
		crashType := "unknown"
		if result.CrashInfo != nil {
			crashType = result.CrashInfo.Type
		}
		w.logger.WithFields(logrus.Fields{
			"worker":       w.ID,
			"test_case_id": testCase.ID,
			"size":         len(testCase.Data),
		}).Warnf("Crash detected: %s", crashType)
	}

	return result, nil
}

// GetStats returns worker performance statistics
func (w *Worker) GetStats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := map[string]interface{}{
		"id":         w.ID,
		"executions": w.executions,
		"crashes":    w.crashes,
		"errors":     w.errors,
		"uptime":     time.Since(w.startTime),
		"busy":       w.busy,
	}
	if uptime := time.Since(w.startTime).Seconds(); uptime > 0 {
		stats["executions_per_second"] = float64(w.executions) / uptime
	}
	return stats
}
