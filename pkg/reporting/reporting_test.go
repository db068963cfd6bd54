/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporting_test.go
Description: Tests for the report collector and the JSON/HTML report generator.
*/

package reporting

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/execution"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/kleascm/imgfuzz/pkg/monitoring"
	"github.com/kleascm/imgfuzz/pkg/strategies"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyCrashExecutor reports parser paths and crashes on empty input
type emptyCrashExecutor struct{}

func (emptyCrashExecutor) Initialize(*interfaces.FuzzerConfig) error { return nil }
func (emptyCrashExecutor) Cleanup() error                            { return nil }

func (emptyCrashExecutor) Execute(tc *interfaces.TestCase) (*interfaces.ExecutionResult, error) {
	result := &interfaces.ExecutionResult{
		TestCaseID: tc.ID,
		Status:     interfaces.StatusSuccess,
		Path:       execution.ParserSignature(tc.Data),
	}
	if len(tc.Data) == 0 {
		result.Status = interfaces.StatusCrash
		result.CrashInfo = &interfaces.CrashInfo{
			Type:       "OUT_OF_BOUNDS",
			Message:    "runtime error: index out of range [3] with length 0",
			Hash:       "0123456789abcdef",
			StackTrace: []string{"imgparse.ParseLegacy(...)"},
		}
	}
	return result, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCollectorBuildsReportFromEngine(t *testing.T) {
	mutators, err := strategies.Build([]string{"bitflip", "header"}, 0.1, 256)
	require.NoError(t, err)

	collector := NewCollector()
	engine := core.NewEngine(quietLogger())
	engine.SetExecutor(emptyCrashExecutor{})
	engine.SetMutators(mutators)
	engine.AddReporter(collector)

	require.NoError(t, engine.Initialize(&interfaces.FuzzerConfig{
		Target:        "parser",
		Executor:      "inprocess",
		Workers:       2,
		MaxExecutions: 150,
		MaxInput:      256,
		MaxMutations:  2,
		CrashDir:      t.TempDir(),
	}))
	require.NoError(t, engine.Start())
	select {
	case <-engine.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not finish in time")
	}
	require.NoError(t, engine.Stop())

	report := collector.BuildReport(engine)
	assert.Equal(t, "parser", report.Target)
	assert.Equal(t, "inprocess", report.Executor)
	assert.NotEmpty(t, report.SessionID)
	assert.Greater(t, report.StatusCounts["success"]+report.StatusCounts["crash"], int64(0))
	assert.Positive(t, collector.Added())
	assert.Contains(t, report.QueueStats, "insertions")

	require.NotEmpty(t, report.Paths)
	for i := 1; i < len(report.Paths); i++ {
		assert.GreaterOrEqual(t, report.Paths[i-1].Count, report.Paths[i].Count)
	}

	require.Len(t, report.Crashes, 1)
	assert.Equal(t, "0123456789abcdef", report.Crashes[0].Hash)
	require.Len(t, report.Buckets, 1)
	assert.Equal(t, analysis.CrashTypeOutOfBounds, report.Buckets[0].CrashType)
}

func TestGeneratorWritesJSONAndHTML(t *testing.T) {
	dir := t.TempDir()
	report := &Report{
		Title:        "IMG! Fuzzing Campaign",
		GeneratedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SessionID:    "5f0c3a8e-1111-2222-3333-444455556666",
		Target:       "legacy",
		Executor:     "process",
		Stats:        core.FuzzerStats{Executions: 40, Crashes: 4, UniqueCrashes: 1, Paths: 3},
		StatusCounts: map[string]int64{"success": 36, "crash": 4},
		Paths:        []PathHit{{Path: "accepted:short:gt100xgt100", Count: 12}},
		Crashes: []CrashSummary{{
			Hash:    "0123456789abcdef",
			Type:    "OUT_OF_BOUNDS",
			Message: "index out of range <script>",
			Count:   4,
		}},
		Buckets: []analysis.Bucket{{
			Cause:     "index out of range [N] with length N",
			CrashType: analysis.CrashTypeOutOfBounds,
			Severity:  analysis.SeverityHigh,
			Count:     1,
		}},
		PeakMemory: &monitoring.MemorySnapshot{HeapAlloc: 3 << 20},
		MemoryAlerts: []monitoring.GrowthAlert{{
			Message: "Sustained heap growth: 2097152.00 bytes/sec",
			Current: 3 << 20,
		}},
	}

	jsonPath, htmlPath, err := NewGenerator(dir, quietLogger()).Write(report)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(jsonPath, "report_2024-03-01_12-00-00_5f0c3a8e.json"))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Stats.Executions, decoded.Stats.Executions)
	assert.Equal(t, report.Paths, decoded.Paths)

	page, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "index out of range [N] with length N")
	assert.Contains(t, html, "accepted:short:gt100xgt100")
	assert.Contains(t, html, "severity-HIGH")
	assert.Contains(t, html, "10.0%")
	assert.Contains(t, html, ">01234567<")
	assert.Contains(t, html, "3.0 MiB")
	assert.Contains(t, html, "Sustained heap growth")
	assert.NotContains(t, html, "<script>")
}
