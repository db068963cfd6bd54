/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: monitoring_test.go
Description: Tests for the resource monitor, heap growth detection and the pprof profiler.
*/

package monitoring

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func series(start time.Time, step time.Duration, heaps ...uint64) []MemorySnapshot {
	out := make([]MemorySnapshot, len(heaps))
	for i, h := range heaps {
		out[i] = MemorySnapshot{Timestamp: start.Add(time.Duration(i) * step), HeapAlloc: h}
	}
	return out
}

func TestDetectGrowth(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("steady growth alerts", func(t *testing.T) {
		snaps := series(start, time.Second, 0, 2<<20, 4<<20, 6<<20)
		alert, ok := DetectGrowth(snaps, 3, 1<<20)
		require.True(t, ok)
		assert.InDelta(t, float64(2<<20), alert.GrowthRate, 1)
		assert.Equal(t, uint64(6<<20), alert.Current)
		assert.Equal(t, 3*time.Second, alert.Window)
	})

	t.Run("below threshold", func(t *testing.T) {
		snaps := series(start, time.Second, 1000, 2000, 3000)
		_, ok := DetectGrowth(snaps, 3, 1<<20)
		assert.False(t, ok)
	})

	t.Run("shrinking heap", func(t *testing.T) {
		snaps := series(start, time.Second, 8<<20, 4<<20, 1<<20)
		_, ok := DetectGrowth(snaps, 3, 0)
		assert.False(t, ok)
	})

	t.Run("too few samples", func(t *testing.T) {
		snaps := series(start, time.Second, 0, 64<<20)
		_, ok := DetectGrowth(snaps, 10, 1)
		assert.False(t, ok)
	})

	t.Run("zero window", func(t *testing.T) {
		snaps := series(start, 0, 0, 64<<20, 128<<20)
		_, ok := DetectGrowth(snaps, 2, 1)
		assert.False(t, ok)
	})
}

func TestResourceMonitorRecordsAlertsOnce(t *testing.T) {
	m := NewResourceMonitor(&ResourceConfig{Interval: time.Second, HistorySize: 4, GrowthThreshold: 1024, MinSamples: 3}, quietLogger())

	start := time.Now()
	for _, s := range series(start, time.Second, 0, 1<<20, 2<<20) {
		m.record(s)
	}
	require.Len(t, m.Alerts(), 1)
	assert.Len(t, m.Snapshots(), 1, "window restarts after an alert")
	assert.Equal(t, uint64(2<<20), m.Peak().HeapAlloc)

	for _, s := range series(start.Add(3*time.Second), time.Second, 100, 90, 80, 70, 60) {
		m.record(s)
	}
	assert.Len(t, m.Alerts(), 1)
	assert.Len(t, m.Snapshots(), 4)
	assert.Equal(t, uint64(2<<20), m.Peak().HeapAlloc)
}

func TestResourceMonitorLifecycle(t *testing.T) {
	m := NewResourceMonitor(&ResourceConfig{Interval: 5 * time.Millisecond, HistorySize: 50, GrowthThreshold: 1 << 40}, quietLogger())

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool { return len(m.Snapshots()) >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	assert.Error(t, m.Stop())
	assert.NotZero(t, m.Peak().HeapAlloc)
	assert.LessOrEqual(t, len(m.Snapshots()), 50)
}

func TestResourceMonitorRejectsBadInterval(t *testing.T) {
	m := NewResourceMonitor(&ResourceConfig{Interval: 0}, quietLogger())
	assert.Error(t, m.Start(context.Background()))
}

func TestProfilerWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	p := NewProfiler(dir, quietLogger())

	_, err := p.Stop()
	assert.Error(t, err)

	require.NoError(t, p.Start())
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start())

	busy := 0
	for i := 0; i < 100000; i++ {
		busy += i % 7
	}
	_ = busy

	results, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, p.IsRunning())

	kinds := map[ProfilerType]bool{}
	for _, r := range results {
		kinds[r.Type] = true
		info, err := os.Stat(r.OutputFile)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), r.OutputFile)
	}
	assert.Equal(t, map[ProfilerType]bool{ProfilerTypeCPU: true, ProfilerTypeHeap: true, ProfilerTypeGoroutine: true}, kinds)

	_, err = p.Stop()
	assert.Error(t, err)
}
