/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: inprocess.go
Description: In-process executor. Calls a harness target directly inside the fuzzer and
acts as its instrumentation layer: a panic in the target is recovered here, never in the
harness, and turned into a crash result with the panic value and stack.
*/

package execution

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// InProcessExecutor runs a harness.Target in the current process
type InProcessExecutor struct {
	target  harness.Target
	timeout time.Duration
	logger  *logrus.Logger
}

// NewInProcessExecutor creates an executor. A nil target is resolved from
// config.Target during Initialize.
func NewInProcessExecutor(target harness.Target, logger *logrus.Logger) *InProcessExecutor {
	if logger == nil {
		logger = logrus.New()
	}
	return &InProcessExecutor{target: target, logger: logger}
}

// Initialize resolves the target and timeout from config
func (e *InProcessExecutor) Initialize(config *interfaces.FuzzerConfig) error {
	if config != nil {
		e.timeout = config.Timeout
	}
	if e.target != nil {
		return nil
	}

	name := "parser"
	if config != nil && config.Target != "" {
		name = config.Target
	}
	target, err := harness.LookupTarget(name)
	if err != nil {
		return fmt.Errorf("in-process executor: %w", err)
	}
	e.target = target
	return nil
}

type callOutcome struct {
	status   int
	panicked bool
	value    interface{}
	stack    []byte
}

// Execute runs the target once. Panics become StatusCrash results; a run
// longer than the configured timeout becomes StatusTimeout.
func (e *InProcessExecutor) Execute(testCase *interfaces.TestCase) (*interfaces.ExecutionResult, error) {
	if e.target == nil {
		return nil, fmt.Errorf("in-process executor not initialized")
	}

	result := &interfaces.ExecutionResult{
		TestCaseID: testCase.ID,
		Status:     interfaces.StatusSuccess,
		Path:       ParserSignature(testCase.Data),
	}

	startTime := time.Now()
	done := make(chan callOutcome, 1)
	go func() {
		done <- e.call(testCase.Data)
	}()

	var outcome callOutcome
	if e.timeout > 0 {
		select {
		case outcome = <-done:
		case <-time.After(e.timeout):
			// The goroutine cannot be killed; it finishes in the background.
			result.Status = interfaces.StatusTimeout
			result.Duration = e.timeout
			result.Error = []byte(fmt.Sprintf("execution timed out after %s", e.timeout))
			return result, nil
		}
	} else {
		outcome = <-done
	}
	result.Duration = time.Since(startTime)
	result.ExitCode = outcome.status

	if outcome.panicked {
		info := analysis.BuildCrashInfo(outcome.value, outcome.stack, testCase.Data)
		result.Status = interfaces.StatusCrash
		result.ExitCode = 2
		result.Error = []byte(fmt.Sprintf("panic: %s\n\n%s", info.Message, outcome.stack))
		result.CrashInfo = info

		e.logger.WithFields(logrus.Fields{
			"test_case_id": testCase.ID,
			"type":         info.Type,
			"hash":         info.Hash,
		}).Debugf("Recovered target panic: %s", info.Message)
	}

	return result, nil
}

// call invokes the target, recovering a panic
func (e *InProcessExecutor) call(data []byte) (out callOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = callOutcome{panicked: true, value: r, stack: debug.Stack()}
		}
	}()
	return callOutcome{status: e.target(data)}
}

// Cleanup is a no-op for the in-process executor
func (e *InProcessExecutor) Cleanup() error {
	return nil
}
