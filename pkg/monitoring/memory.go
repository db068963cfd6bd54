/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: memory.go
Description: Resource monitoring for fuzzing campaigns. Samples Go runtime memory
statistics on an interval, keeps a bounded history and raises an alert when the heap
grows steadily, which usually means the harness or the corpus is leaking.
*/

package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemorySnapshot represents a memory usage snapshot
type MemorySnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	HeapAlloc    uint64    `json:"heap_alloc"`
	HeapSys      uint64    `json:"heap_sys"`
	HeapInuse    uint64    `json:"heap_inuse"`
	HeapObjects  uint64    `json:"heap_objects"`
	StackInuse   uint64    `json:"stack_inuse"`
	GoRoutines   int       `json:"go_routines"`
	NumGC        uint32    `json:"num_gc"`
	PauseTotalNs uint64    `json:"pause_total_ns"`
}

// GrowthAlert reports sustained heap growth across the history window
type GrowthAlert struct {
	Timestamp  time.Time     `json:"timestamp"`
	Message    string        `json:"message"`
	Current    uint64        `json:"current"`
	GrowthRate float64       `json:"growth_rate"` // bytes per second
	Window     time.Duration `json:"window"`
}

// ResourceConfig configures a ResourceMonitor
type ResourceConfig struct {
	Interval        time.Duration `json:"interval"`
	HistorySize     int           `json:"history_size"`
	GrowthThreshold float64       `json:"growth_threshold"` // bytes per second
	MinSamples      int           `json:"min_samples"`
}

// DefaultResourceConfig samples every second and alerts above 1MB/s of growth
func DefaultResourceConfig() *ResourceConfig {
	return &ResourceConfig{
		Interval:        time.Second,
		HistorySize:     300,
		GrowthThreshold: 1024 * 1024,
		MinSamples:      10,
	}
}

// ResourceMonitor samples runtime memory statistics in the background
type ResourceMonitor struct {
	config *ResourceConfig
	logger *logrus.Logger

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex

	snapshots []MemorySnapshot
	peak      MemorySnapshot
	alerts    []GrowthAlert
}

// NewResourceMonitor creates a monitor. A nil config selects the defaults.
func NewResourceMonitor(config *ResourceConfig, logger *logrus.Logger) *ResourceMonitor {
	if config == nil {
		config = DefaultResourceConfig()
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 300
	}
	if config.MinSamples < 2 {
		config.MinSamples = 2
	}
	return &ResourceMonitor{config: config, logger: logger}
}

// Start begins sampling until ctx is cancelled or Stop is called
func (m *ResourceMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("resource monitor already running")
	}
	if m.config.Interval <= 0 {
		return fmt.Errorf("invalid sample interval: %v", m.config.Interval)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.record(TakeSnapshot())

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.WithField("interval", m.config.Interval).Debug("Resource monitor started")
	return nil
}

// Stop halts sampling and waits for the collection goroutine
func (m *ResourceMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("resource monitor not running")
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.logger.Debug("Resource monitor stopped")
	return nil
}

func (m *ResourceMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := TakeSnapshot()
			m.mu.Lock()
			m.record(snapshot)
			m.mu.Unlock()
		}
	}
}

// record appends a snapshot and checks for growth. Caller holds mu.
func (m *ResourceMonitor) record(snapshot MemorySnapshot) {
	m.snapshots = append(m.snapshots, snapshot)
	if len(m.snapshots) > m.config.HistorySize {
		m.snapshots = m.snapshots[len(m.snapshots)-m.config.HistorySize:]
	}
	if snapshot.HeapAlloc >= m.peak.HeapAlloc {
		m.peak = snapshot
	}

	if alert, ok := DetectGrowth(m.snapshots, m.config.MinSamples, m.config.GrowthThreshold); ok {
		m.alerts = append(m.alerts, alert)
		m.logger.WithFields(logrus.Fields{
			"heap_alloc":  alert.Current,
			"growth_rate": fmt.Sprintf("%.0f B/s", alert.GrowthRate),
			"window":      alert.Window,
		}).Warn(alert.Message)
		// Restart the window so one leak raises one alert per window
		m.snapshots = m.snapshots[len(m.snapshots)-1:]
	}
}

// Snapshots returns a copy of the sample history
func (m *ResourceMonitor) Snapshots() []MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]MemorySnapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// Peak returns the snapshot with the highest heap allocation
func (m *ResourceMonitor) Peak() MemorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peak
}

// Alerts returns the growth alerts raised so far
func (m *ResourceMonitor) Alerts() []GrowthAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]GrowthAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// IsRunning reports whether the monitor is sampling
func (m *ResourceMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// TakeSnapshot reads the current runtime memory statistics
func TakeSnapshot() MemorySnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return MemorySnapshot{
		Timestamp:    time.Now(),
		HeapAlloc:    ms.HeapAlloc,
		HeapSys:      ms.HeapSys,
		HeapInuse:    ms.HeapInuse,
		HeapObjects:  ms.HeapObjects,
		StackInuse:   ms.StackInuse,
		GoRoutines:   runtime.NumGoroutine(),
		NumGC:        ms.NumGC,
		PauseTotalNs: ms.PauseTotalNs,
	}
}

// DetectGrowth reports heap growth above threshold bytes per second between the
// first and last of at least minSamples snapshots. Shrinking heaps never alert.
func DetectGrowth(snapshots []MemorySnapshot, minSamples int, threshold float64) (GrowthAlert, bool) {
	if len(snapshots) < minSamples || len(snapshots) < 2 {
		return GrowthAlert{}, false
	}

	first := snapshots[0]
	last := snapshots[len(snapshots)-1]
	window := last.Timestamp.Sub(first.Timestamp)
	if window <= 0 || last.HeapAlloc <= first.HeapAlloc {
		return GrowthAlert{}, false
	}

	rate := float64(last.HeapAlloc-first.HeapAlloc) / window.Seconds()
	if rate <= threshold {
		return GrowthAlert{}, false
	}
	return GrowthAlert{
		Timestamp:  last.Timestamp,
		Message:    fmt.Sprintf("Sustained heap growth: %.2f bytes/sec", rate),
		Current:    last.HeapAlloc,
		GrowthRate: rate,
		Window:     window,
	}, true
}
