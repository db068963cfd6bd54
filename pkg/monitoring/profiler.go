/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profiler.go
Description: pprof profiling for fuzzing campaigns. A Profiler records a CPU profile
for the lifetime of a campaign and writes heap and goroutine profiles when it stops,
so slow harness targets and leaking mutators can be inspected with go tool pprof.
*/

package monitoring

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProfilerType represents the type of profiling
type ProfilerType string

const (
	ProfilerTypeCPU       ProfilerType = "cpu"
	ProfilerTypeHeap      ProfilerType = "heap"
	ProfilerTypeGoroutine ProfilerType = "goroutine"
)

// ProfileResult describes one written profile
type ProfileResult struct {
	Type       ProfilerType  `json:"type"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	OutputFile string        `json:"output_file"`
}

// Profiler writes pprof profiles into a directory
type Profiler struct {
	outputDir string
	logger    *logrus.Logger

	mu        sync.Mutex
	running   bool
	cpuFile   *os.File
	startTime time.Time
	stamp     string
}

// NewProfiler creates a profiler writing into outputDir
func NewProfiler(outputDir string, logger *logrus.Logger) *Profiler {
	return &Profiler{outputDir: outputDir, logger: logger}
}

// Start begins CPU profiling
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("profiler already running")
	}
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	p.startTime = time.Now()
	p.stamp = p.startTime.Format("2006-01-02_15-04-05")
	file, err := os.Create(p.path(ProfilerTypeCPU))
	if err != nil {
		return fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to start CPU profile: %w", err)
	}

	p.cpuFile = file
	p.running = true
	p.logger.WithField("dir", p.outputDir).Info("CPU profiling started")
	return nil
}

// Stop ends CPU profiling and writes heap and goroutine profiles
func (p *Profiler) Stop() ([]ProfileResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil, fmt.Errorf("profiler not running")
	}
	p.running = false

	pprof.StopCPUProfile()
	end := time.Now()
	cpuPath := p.cpuFile.Name()
	if err := p.cpuFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close CPU profile: %w", err)
	}
	p.cpuFile = nil
	results := []ProfileResult{{
		Type:       ProfilerTypeCPU,
		StartTime:  p.startTime,
		EndTime:    end,
		Duration:   end.Sub(p.startTime),
		OutputFile: cpuPath,
	}}

	runtime.GC()
	for _, kind := range []ProfilerType{ProfilerTypeHeap, ProfilerTypeGoroutine} {
		result, err := p.writeLookup(kind)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	for _, r := range results {
		p.logger.WithFields(logrus.Fields{
			"type": r.Type,
			"file": r.OutputFile,
		}).Info("Profile written")
	}
	return results, nil
}

// IsRunning reports whether CPU profiling is active
func (p *Profiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Profiler) writeLookup(kind ProfilerType) (ProfileResult, error) {
	name := string(kind)
	profile := pprof.Lookup(name)
	if profile == nil {
		return ProfileResult{}, fmt.Errorf("unknown profile: %s", name)
	}

	path := p.path(kind)
	file, err := os.Create(path)
	if err != nil {
		return ProfileResult{}, fmt.Errorf("failed to create %s profile file: %w", name, err)
	}
	defer file.Close()

	now := time.Now()
	if err := profile.WriteTo(file, 0); err != nil {
		return ProfileResult{}, fmt.Errorf("failed to write %s profile: %w", name, err)
	}
	return ProfileResult{Type: kind, StartTime: now, EndTime: now, OutputFile: path}, nil
}

func (p *Profiler) path(kind ProfilerType) string {
	return filepath.Join(p.outputDir, fmt.Sprintf("%s_%s.prof", kind, p.stamp))
}
