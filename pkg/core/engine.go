/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Main fuzzing engine for the IMG! harness. Loads or generates a seed corpus,
runs a pool of workers that pull scheduled test cases, derives new inputs through
the configured mutators, and records unique crashes to the crash directory. Inputs
that reach a previously unseen parser path are boosted and kept in the corpus.
*/

package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/imgfuzz/pkg/coverage"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Engine drives a fuzzing campaign
type Engine struct {
	config *interfaces.FuzzerConfig
	stats  *FuzzerStats
	logger *logrus.Logger

	// Core components
	executor interfaces.Executor
	mutators []interfaces.Mutator

	// Corpus management
	corpus    *Corpus
	scheduler Scheduler

	// Worker management
	workers []*Worker

	// Synchronization
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once

	// State management
	running bool
	mu      sync.RWMutex

	// Coverage and crash tracking
	paths   *coverage.PathSet
	crashes map[string]*CrashRecord
	trackMu sync.Mutex
	rateMu  sync.Mutex
	rate    float64

	reporters []Reporter
}

// NewEngine creates a new engine instance
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		stats:     &FuzzerStats{StartTime: time.Now()},
		logger:    logger,
		corpus:    NewCorpus(),
		scheduler: NewPriorityScheduler(),
		paths:     coverage.NewPathSet(),
		crashes:   make(map[string]*CrashRecord),
		done:      make(chan struct{}),
	}
}

// SetExecutor sets the executor for the engine
func (e *Engine) SetExecutor(executor interfaces.Executor) {
	e.executor = executor
}

// SetMutators sets the mutators for the engine
func (e *Engine) SetMutators(mutators []interfaces.Mutator) {
	e.mutators = append([]interfaces.Mutator(nil), mutators...)
}

// SetScheduler replaces the default priority scheduler
func (e *Engine) SetScheduler(s Scheduler) {
	e.scheduler = s
}

// AddReporter registers a Reporter
func (e *Engine) AddReporter(reporter Reporter) {
	e.reporters = append(e.reporters, reporter)
}

// Initialize prepares the engine for a campaign
func (e *Engine) Initialize(config *interfaces.FuzzerConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if config == nil {
		return fmt.Errorf("config must not be nil")
	}
	if e.executor == nil {
		return fmt.Errorf("executor not set - use SetExecutor() before Initialize()")
	}
	if len(e.mutators) == 0 {
		return fmt.Errorf("mutators not set - use SetMutators() before Initialize()")
	}

	e.config = config
	if e.config.SessionID == "" {
		e.config.SessionID = uuid.New().String()
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.corpus.SetMaxSize(config.MaxCorpusSize)

	if err := e.executor.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize executor: %w", err)
	}

	e.scheduler.Reset()
	if err := e.initializeCorpus(); err != nil {
		return fmt.Errorf("failed to initialize corpus: %w", err)
	}

	e.initializeWorkers()

	e.logger.WithFields(logrus.Fields{
		"session_id": e.config.SessionID,
		"target":     e.config.Target,
		"executor":   e.config.Executor,
		"workers":    len(e.workers),
		"corpus":     e.corpus.Size(),
	}).Info("Fuzzer engine initialized")
	return nil
}

// initializeCorpus loads seeds from CorpusDir, falling back to the
// built-in seeds when the directory is unset or empty
func (e *Engine) initializeCorpus() error {
	var seeds []*interfaces.TestCase

	if e.config.CorpusDir != "" {
		if err := os.MkdirAll(e.config.CorpusDir, 0755); err != nil {
			return fmt.Errorf("failed to create corpus directory: %w", err)
		}
		loaded, err := LoadTestCases(e.config.CorpusDir)
		if err != nil {
			return err
		}
		seeds = loaded
	}

	if len(seeds) == 0 {
		e.logger.Info("No seed files found, using built-in IMG! seeds")
		seeds = SeedTestCases(DefaultSeeds())
	}

	for _, tc := range seeds {
		if e.config.MaxInput > 0 && len(tc.Data) > e.config.MaxInput {
			tc.Data = tc.Data[:e.config.MaxInput]
		}
		if e.corpus.Add(tc) {
			e.scheduler.Push(tc)
		}
	}

	e.logger.Infof("Loaded %d seed test cases", e.corpus.Size())
	return nil
}

// initializeWorkers creates the worker pool
func (e *Engine) initializeWorkers() {
	numWorkers := e.config.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	e.workers = make([]*Worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		e.workers[i] = NewWorker(i, e.executor, e.logger)
	}
}

// Start launches the workers and background loops
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.config == nil {
		e.mu.Unlock()
		return fmt.Errorf("engine not initialized")
	}
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("fuzzer is already running")
	}
	e.running = true
	e.stats.StartTime = time.Now()
	e.mu.Unlock()

	e.logger.Info("Starting fuzzer engine")

	e.wg.Add(1)
	go e.updateStats()

	for _, worker := range e.workers {
		e.wg.Add(1)
		go func(w *Worker) {
			defer e.wg.Done()
			e.runWorker(w)
		}(worker)
	}

	e.wg.Add(1)
	go e.runScheduler()

	if e.config.Duration > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			select {
			case <-time.After(e.config.Duration):
				e.finish("duration reached")
			case <-e.ctx.Done():
			}
		}()
	}

	return nil
}

// Stop cancels all workers and waits for them to exit
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return fmt.Errorf("fuzzer is not running")
	}
	e.running = false
	e.mu.Unlock()

	e.logger.Info("Stopping fuzzer engine")
	e.cancel()
	e.wg.Wait()
	e.finish("stopped")

	if err := e.executor.Cleanup(); err != nil {
		e.logger.Warnf("Executor cleanup failed: %v", err)
	}

	e.logger.Info("Fuzzer engine stopped")
	return nil
}

// Done is closed when a stop condition is reached
// (duration, max executions, max crashes) or after Stop
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) finish(reason string) {
	e.doneOnce.Do(func() {
		e.logger.Infof("Campaign finished: %s", reason)
		close(e.done)
	})
}

// runWorker pulls test cases until the context is cancelled
func (e *Engine) runWorker(worker *Worker) {
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.done:
			return
		default:
		}

		testCase := e.scheduler.Next()
		if testCase == nil {
			e.generateTestCases()
			time.Sleep(time.Millisecond)
			continue
		}

		result, err := worker.Execute(testCase)
		if err != nil {
			e.stats.IncrementErrors()
			continue
		}

		e.processResult(testCase, result)

		executions := e.stats.IncrementExecutions()
		if e.config.MaxExecutions > 0 && executions >= e.config.MaxExecutions {
			e.finish("max executions reached")
		}
	}
}

// runScheduler refills the queue and trims the corpus
func (e *Engine) runScheduler() {
	defer e.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if e.scheduler.Size() < e.workerCount()*4 {
				e.generateTestCases()
			}
			if removed := e.corpus.Cleanup(e.maxCorpusSize()); removed > 0 {
				e.logger.Debugf("Cleaned up %d test cases from corpus", removed)
			}
		}
	}
}

// generateTestCases derives new inputs from random corpus entries
func (e *Engine) generateTestCases() {
	// The top entries are boosted path finders; the rest keep variety
	var sources []*interfaces.TestCase
	picked := make(map[string]bool)
	for _, tc := range append(e.corpus.GetByPriority(2), e.corpus.GetRandom(6)...) {
		if !picked[tc.ID] {
			picked[tc.ID] = true
			sources = append(sources, tc)
		}
	}
	if len(sources) == 0 {
		return
	}

	rounds := e.config.MaxMutations
	if rounds <= 0 {
		rounds = 1
	}

	for _, source := range sources {
		for i := 0; i < rounds; i++ {
			mutator := e.mutators[(i+int(e.corpus.Executions(source.ID)))%len(e.mutators)]
			mutated, err := mutator.Mutate(source)
			if err != nil || mutated == nil {
				e.logger.Debugf("Mutation failed: %v", err)
				continue
			}

			if e.config.MaxInput > 0 && len(mutated.Data) > e.config.MaxInput {
				mutated.Data = mutated.Data[:e.config.MaxInput]
			}
			mutated.ParentID = source.ID
			mutated.Generation = source.Generation + 1
			mutated.CreatedAt = time.Now()
			mutated.Priority = e.calculatePriority(mutated)

			// Mutants are always executed; only path-discovering ones are kept
			e.scheduler.Push(mutated)
		}
	}
}

// calculatePriority determines the scheduling priority of a new test case
func (e *Engine) calculatePriority(tc *interfaces.TestCase) int {
	priority := 100
	if tc.Generation == 0 {
		priority += 50
	}
	// Deep mutation chains drift away from valid headers
	priority -= tc.Generation
	if priority < 1 {
		priority = 1
	}
	return priority
}

// processResult updates coverage, corpus and crash tracking for one execution
func (e *Engine) processResult(tc *interfaces.TestCase, result *interfaces.ExecutionResult) {
	crashed := result.Status == interfaces.StatusCrash
	newPath := e.recordPath(result.Path, tc.ID)

	switch result.Status {
	case interfaces.StatusCrash:
		e.handleCrash(tc, result)
	case interfaces.StatusTimeout:
		e.stats.IncrementTimeouts()
	case interfaces.StatusError:
		e.stats.IncrementErrors()
	}

	if newPath || crashed {
		meta := map[string]interface{}{"path": result.Path}
		for k, v := range tc.Metadata {
			if k != "path" {
				meta[k] = v
			}
		}
		kept := *tc
		kept.Metadata = meta
		kept.Priority = e.calculatePriority(tc) + 100

		if e.corpus.Add(&kept) {
			for _, r := range e.reporters {
				r.OnTestCaseAdded(&kept)
			}
		}
		if newPath {
			e.logger.WithFields(logrus.Fields{
				"test_case_id": tc.ID,
				"path":         result.Path,
				"paths":        e.paths.Len(),
			}).Info("New parser path reached")
			e.scheduler.Push(&kept)
		}
	}

	e.corpus.RecordExecution(tc.ID, crashed, newPath)

	for _, r := range e.reporters {
		r.OnTestCaseExecuted(tc, result)
	}
}

// recordPath returns true the first time a path signature is seen
func (e *Engine) recordPath(path, testCaseID string) bool {
	if !e.paths.Record(path, testCaseID) {
		return false
	}
	e.stats.IncrementPaths()
	e.trackMu.Lock()
	e.stats.LastPathTime = time.Now()
	e.trackMu.Unlock()
	return true
}

// handleCrash deduplicates a crash by hash and saves new ones
func (e *Engine) handleCrash(tc *interfaces.TestCase, result *interfaces.ExecutionResult) {
	e.stats.IncrementCrashes()

	info := result.CrashInfo
	if info == nil {
		info = &interfaces.CrashInfo{Type: "UNKNOWN", Message: string(result.Error)}
	}
	hash := info.Hash
	if hash == "" {
		hash = ContentHash([]byte(info.Type + info.Message))
	}

	e.trackMu.Lock()
	if existing, ok := e.crashes[hash]; ok {
		existing.Count++
		e.trackMu.Unlock()
		return
	}
	record := &CrashRecord{
		Hash:       hash,
		TestCaseID: tc.ID,
		Crash:      info,
		Count:      1,
		FirstSeen:  time.Now(),
	}
	e.crashes[hash] = record
	e.stats.LastCrashTime = record.FirstSeen
	e.trackMu.Unlock()

	if e.config.CrashDir != "" {
		path, err := e.saveCrashFile(hash, tc.Data)
		if err != nil {
			e.logger.Errorf("Failed to save crash file: %v", err)
		} else {
			e.trackMu.Lock()
			record.Path = path
			e.trackMu.Unlock()
		}
	}

	unique := e.stats.IncrementUniqueCrashes()
	for _, r := range e.reporters {
		r.OnCrash(record)
	}

	if e.config.MaxCrashes > 0 && unique >= int64(e.config.MaxCrashes) {
		e.finish("max crashes reached")
	}
}

// saveCrashFile writes the crashing input so it can be reproduced
func (e *Engine) saveCrashFile(hash string, data []byte) (string, error) {
	if err := os.MkdirAll(e.config.CrashDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create crash directory: %w", err)
	}

	short := hash
	if len(short) > 16 {
		short = short[:16]
	}
	path := filepath.Join(e.config.CrashDir, fmt.Sprintf("crash_%s_%s", time.Now().Format("20060102_150405"), short))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// updateStats periodically recomputes the execution rate
func (e *Engine) updateStats() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.calculateExecutionRate()
		}
	}
}

func (e *Engine) calculateExecutionRate() {
	elapsed := time.Since(e.stats.StartTime).Seconds()
	if elapsed <= 0 {
		return
	}
	snap := e.stats.snapshot()
	e.rateMu.Lock()
	e.rate = float64(snap.Executions) / elapsed
	e.rateMu.Unlock()
}

func (e *Engine) workerCount() int {
	if n := len(e.workers); n > 0 {
		return n
	}
	return 1
}

func (e *Engine) maxCorpusSize() int {
	if e.config.MaxCorpusSize > 0 {
		return e.config.MaxCorpusSize
	}
	return DefaultMaxCorpusSize
}

// GetStats returns a consistent copy of the campaign statistics
func (e *Engine) GetStats() FuzzerStats {
	snap := e.stats.snapshot()
	snap.CorpusSize = e.corpus.Size()

	e.trackMu.Lock()
	snap.LastCrashTime = e.stats.LastCrashTime
	snap.LastPathTime = e.stats.LastPathTime
	e.trackMu.Unlock()

	e.rateMu.Lock()
	snap.ExecutionsPerSecond = e.rate
	e.rateMu.Unlock()
	if snap.ExecutionsPerSecond == 0 {
		if elapsed := time.Since(snap.StartTime).Seconds(); elapsed > 0 {
			snap.ExecutionsPerSecond = float64(snap.Executions) / elapsed
		}
	}
	return snap
}

// Crashes returns the unique crashes found so far
func (e *Engine) Crashes() []*CrashRecord {
	e.trackMu.Lock()
	defer e.trackMu.Unlock()

	records := make([]*CrashRecord, 0, len(e.crashes))
	for _, r := range e.crashes {
		copied := *r
		records = append(records, &copied)
	}
	return records
}

// Paths returns hit counts per parser path signature
func (e *Engine) Paths() map[string]int {
	return e.paths.Counts()
}

// Coverage returns every reached path in discovery order
func (e *Engine) Coverage() []coverage.PathInfo {
	return e.paths.Snapshot()
}

// GetCorpus returns the corpus managed by the engine
func (e *Engine) GetCorpus() *Corpus {
	return e.corpus
}

// SchedulerStats returns the scheduler queue counters
func (e *Engine) SchedulerStats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scheduler.Stats()
}

// Config returns the active campaign configuration
func (e *Engine) Config() *interfaces.FuzzerConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}
