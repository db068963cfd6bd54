/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dashboard.go
Description: Campaign reports for the IMG! fuzzer. Collector listens to engine events;
Generator writes the collected statistics, parser path hits, unique crashes and triage
buckets as a JSON file and a static HTML dashboard.
*/

package reporting

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/kleascm/imgfuzz/pkg/monitoring"
	"github.com/sirupsen/logrus"
)

// PathHit is one parser path signature with its execution count
type PathHit struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// CrashSummary is a unique crash as shown in the report
type CrashSummary struct {
	Hash      string    `json:"hash"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	File      string    `json:"file,omitempty"`
	Frames    []string  `json:"frames,omitempty"`
}

// Report contains all data for report generation
type Report struct {
	Title        string                 `json:"title"`
	GeneratedAt  time.Time              `json:"generated_at"`
	SessionID    string                 `json:"session_id"`
	Target       string                 `json:"target"`
	Executor     string                 `json:"executor"`
	Stats        core.FuzzerStats       `json:"stats"`
	StatusCounts map[string]int64       `json:"status_counts"`
	Paths        []PathHit              `json:"paths"`
	Crashes      []CrashSummary         `json:"crashes"`
	Buckets      []analysis.Bucket      `json:"buckets"`
	CorpusStats  map[string]interface{} `json:"corpus_stats,omitempty"`
	QueueStats   map[string]interface{} `json:"queue_stats,omitempty"`

	PeakMemory   *monitoring.MemorySnapshot `json:"peak_memory,omitempty"`
	MemoryAlerts []monitoring.GrowthAlert   `json:"memory_alerts,omitempty"`
}

// Collector gathers engine events for the report
type Collector struct {
	mu       sync.Mutex
	statuses map[string]int64
	paths    map[string]int
	added    int64
}

// NewCollector creates a new Collector
func NewCollector() *Collector {
	return &Collector{
		statuses: make(map[string]int64),
		paths:    make(map[string]int),
	}
}

// OnTestCaseExecuted counts statuses and path hits
func (c *Collector) OnTestCaseExecuted(tc *interfaces.TestCase, result *interfaces.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[result.Status.String()]++
	if result.Path != "" {
		c.paths[result.Path]++
	}
}

// OnTestCaseAdded counts corpus additions
func (c *Collector) OnTestCaseAdded(tc *interfaces.TestCase) {
	c.mu.Lock()
	c.added++
	c.mu.Unlock()
}

// OnCrash is a no-op; crashes are read from the engine when the report is built
func (c *Collector) OnCrash(record *core.CrashRecord) {}

// Added returns how many test cases entered the corpus
func (c *Collector) Added() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.added
}

// BuildReport assembles a report from the engine state and collected events
func (c *Collector) BuildReport(engine *core.Engine) *Report {
	config := engine.Config()
	report := &Report{
		Title:       "IMG! Fuzzing Campaign",
		GeneratedAt: time.Now(),
		Stats:       engine.GetStats(),
		CorpusStats: engine.GetCorpus().GetStats(),
		QueueStats:  engine.SchedulerStats(),
	}
	if config != nil {
		report.SessionID = config.SessionID
		report.Target = config.Target
		report.Executor = config.Executor
	}

	c.mu.Lock()
	report.StatusCounts = make(map[string]int64, len(c.statuses))
	for k, v := range c.statuses {
		report.StatusCounts[k] = v
	}
	for path, count := range c.paths {
		report.Paths = append(report.Paths, PathHit{Path: path, Count: count})
	}
	c.mu.Unlock()
	sort.Slice(report.Paths, func(i, j int) bool {
		if report.Paths[i].Count != report.Paths[j].Count {
			return report.Paths[i].Count > report.Paths[j].Count
		}
		return report.Paths[i].Path < report.Paths[j].Path
	})

	triage := analysis.NewCrashTriageEngine()
	var results []*analysis.TriageResult
	for _, rec := range engine.Crashes() {
		report.Crashes = append(report.Crashes, CrashSummary{
			Hash:      rec.Hash,
			Type:      rec.Crash.Type,
			Message:   rec.Crash.Message,
			Count:     rec.Count,
			FirstSeen: rec.FirstSeen,
			File:      rec.Path,
			Frames:    rec.Crash.StackTrace,
		})
		results = append(results, triage.TriageCrash(rec.Crash, nil))
	}
	sort.Slice(report.Crashes, func(i, j int) bool {
		return report.Crashes[i].FirstSeen.Before(report.Crashes[j].FirstSeen)
	})
	report.Buckets = analysis.Bucketize(results)
	return report
}

// Generator writes reports into an output directory
type Generator struct {
	outputDir string
	logger    *logrus.Logger
	templates *template.Template
}

// NewGenerator creates a report generator
func NewGenerator(outputDir string, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{
		outputDir: outputDir,
		logger:    logger,
		templates: template.Must(template.New("report").Funcs(templateFuncs).Parse(reportTemplate)),
	}
}

// Write stores report as JSON and HTML and returns both paths
func (g *Generator) Write(report *Report) (jsonPath, htmlPath string, err error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}

	base := "report_" + report.GeneratedAt.Format("2006-01-02_15-04-05")
	if report.SessionID != "" {
		base += "_" + shortID(report.SessionID)
	}
	jsonPath = filepath.Join(g.outputDir, base+".json")
	htmlPath = filepath.Join(g.outputDir, base+".html")

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	file, err := os.Create(htmlPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create HTML report: %w", err)
	}
	defer file.Close()
	if err := g.templates.Execute(file, report); err != nil {
		return "", "", fmt.Errorf("failed to render HTML report: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"json": jsonPath,
		"html": htmlPath,
	}).Info("Report generated")
	return jsonPath, htmlPath, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ core.Reporter = (*Collector)(nil)
