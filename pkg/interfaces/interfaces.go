/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the IMG! fuzzer. Defines the core types and
interfaces used across core, strategies and execution to break import cycles.
*/

package interfaces

import (
	"time"
)

// TestCase represents a single input for fuzzing
type TestCase struct {
	ID         string                 `json:"id"`
	Data       []byte                 `json:"data"`
	ParentID   string                 `json:"parent_id"`
	Generation int                    `json:"generation"`
	CreatedAt  time.Time              `json:"created_at"`
	Executions int64                  `json:"executions"`
	Priority   int                    `json:"priority"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// ExecutionResult represents the result of executing a test case
type ExecutionResult struct {
	TestCaseID string          `json:"test_case_id"`
	Status     ExecutionStatus `json:"status"`
	ExitCode   int             `json:"exit_code"`
	Signal     int             `json:"signal"`
	Duration   time.Duration   `json:"duration"`
	Output     []byte          `json:"output"`
	Error      []byte          `json:"error"`
	Path       string          `json:"path"` // Parser path signature reached by the input
	CrashInfo  *CrashInfo      `json:"crash_info,omitempty"`
}

// ExecutionStatus represents the status of an execution
type ExecutionStatus int

const (
	StatusSuccess ExecutionStatus = iota
	StatusError
	StatusCrash
	StatusTimeout
)

// String returns the string representation of an execution status
func (s ExecutionStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusCrash:
		return "crash"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CrashInfo represents information about a crash
type CrashInfo struct {
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	StackTrace []string               `json:"stack_trace"`
	Hash       string                 `json:"hash"`
	Input      []byte                 `json:"input"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// FuzzerConfig represents the configuration for a fuzzing campaign
type FuzzerConfig struct {
	Target        string        `json:"target"`         // Harness target name (parser, legacy, gofuzz)
	Executor      string        `json:"executor"`       // "inprocess" or "process"
	HarnessPath   string        `json:"harness_path"`   // Harness binary for the process executor
	Workers       int           `json:"workers"`        // Number of parallel workers
	Timeout       time.Duration `json:"timeout"`        // Maximum execution time per test case
	Duration      time.Duration `json:"duration"`       // Campaign length (0 = until stopped)
	MaxExecutions int64         `json:"max_executions"` // Stop after this many executions (0 = unlimited)
	MaxInput      int           `json:"max_input"`      // Largest input fed to the target
	CorpusDir     string        `json:"corpus_dir"`     // Directory containing seed corpus
	OutputDir     string        `json:"output_dir"`     // Directory for fuzzer output
	CrashDir      string        `json:"crash_dir"`      // Directory for crash inputs
	MaxCorpusSize int           `json:"max_corpus_size"`
	MutationRate  float64       `json:"mutation_rate"`
	MaxMutations  int           `json:"max_mutations"`
	MaxCrashes    int           `json:"max_crashes"` // Stop after this many unique crashes (0 = unlimited)
	LogLevel      string        `json:"log_level"`
	SessionID     string        `json:"session_id"`
}

// Executor runs test cases against a target
type Executor interface {
	Initialize(config *FuzzerConfig) error
	Execute(testCase *TestCase) (*ExecutionResult, error)
	Cleanup() error
}

// Mutator derives new test cases from existing ones
type Mutator interface {
	Mutate(testCase *TestCase) (*TestCase, error)
	Name() string
	Description() string
}
