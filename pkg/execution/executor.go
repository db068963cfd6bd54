/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor.go
Description: Process executor for the IMG! fuzzer. Runs the single-shot harness binary
once per test case with the input on stdin, enforces the timeout and turns signals or a
Go panic exit into crash results.
*/

package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout applies when the config sets none
const DefaultTimeout = 5 * time.Second

// goPanicExitCode is the status the Go runtime exits with on an unrecovered panic
const goPanicExitCode = 2

// ProcessExecutor runs an external harness binary per test case
type ProcessExecutor struct {
	config   *interfaces.FuzzerConfig
	harness  string
	args     []string
	logger   *logrus.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	maxInput int
}

// NewProcessExecutor creates a new process executor instance
func NewProcessExecutor(logger *logrus.Logger) *ProcessExecutor {
	if logger == nil {
		logger = logrus.New()
	}
	return &ProcessExecutor{logger: logger}
}

// Initialize sets up the executor with the given configuration
func (e *ProcessExecutor) Initialize(config *interfaces.FuzzerConfig) error {
	if config == nil {
		return fmt.Errorf("process executor: config must not be nil")
	}
	if config.HarnessPath == "" {
		return fmt.Errorf("process executor: harness path not set")
	}
	path, err := exec.LookPath(config.HarnessPath)
	if err != nil {
		return fmt.Errorf("process executor: harness %q not found: %w", config.HarnessPath, err)
	}

	e.config = config
	e.harness = path
	e.timeout = config.Timeout
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	e.maxInput = config.MaxInput

	e.args = nil
	if config.Target != "" {
		e.args = append(e.args, "--target", config.Target)
	}
	if config.MaxInput > 0 {
		e.args = append(e.args, "--max-input", strconv.Itoa(config.MaxInput))
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.logger.WithFields(logrus.Fields{
		"harness": e.harness,
		"args":    e.args,
		"timeout": e.timeout,
	}).Debug("Process executor initialized")
	return nil
}

// Execute runs a test case and returns the execution result
func (e *ProcessExecutor) Execute(testCase *interfaces.TestCase) (*interfaces.ExecutionResult, error) {
	if e.ctx == nil {
		return nil, fmt.Errorf("process executor not initialized")
	}

	result := &interfaces.ExecutionResult{
		TestCaseID: testCase.ID,
		Status:     interfaces.StatusSuccess,
		Path:       ParserSignature(e.clip(testCase.Data)),
	}

	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.harness, e.args...)
	cmd.Stdin = bytes.NewReader(testCase.Data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	startTime := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Output = stdout.Bytes()
	result.Error = stderr.Bytes()

	if ctx.Err() == context.DeadlineExceeded {
		result.Status = interfaces.StatusTimeout
		result.Duration = e.timeout
		return result, nil
	}
	if e.ctx.Err() != nil {
		result.Status = interfaces.StatusError
		return result, fmt.Errorf("process executor closed: %w", e.ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		// Non-zero status, inspected below
	default:
		result.Status = interfaces.StatusError
		result.Error = append(result.Error, []byte("failed to run harness: "+err.Error())...)
		return result, fmt.Errorf("failed to run harness: %w", err)
	}

	state := exitErr.ProcessState
	result.ExitCode = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		result.Signal = int(ws.Signal())
		result.Status = interfaces.StatusCrash
		result.CrashInfo = analysis.CrashInfoFromOutput(result.Error, "signal: "+ws.Signal().String(), testCase.Data)
		return result, nil
	}

	if result.ExitCode == goPanicExitCode {
		if _, ok := analysis.ParseGoPanic(result.Error); ok {
			result.Status = interfaces.StatusCrash
			result.CrashInfo = analysis.CrashInfoFromOutput(result.Error, "", testCase.Data)
		}
	}
	// Any other status is the target's return value, not a failure

	return result, nil
}

// clip mirrors the harness read bound so the signature matches what ran
func (e *ProcessExecutor) clip(data []byte) []byte {
	if e.maxInput > 0 && len(data) > e.maxInput {
		return data[:e.maxInput]
	}
	return data
}

// Cleanup kills any harness process still running
func (e *ProcessExecutor) Cleanup() error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}
