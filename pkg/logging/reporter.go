/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Engine reporter that routes campaign events into the fuzzer logger.
*/

package logging

import (
	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Reporter implements core.Reporter on top of a Logger
type Reporter struct {
	logger *Logger
}

// NewReporter creates a Reporter
func NewReporter(logger *Logger) *Reporter {
	return &Reporter{logger: logger}
}

// OnTestCaseExecuted logs every execution at debug level
func (r *Reporter) OnTestCaseExecuted(tc *interfaces.TestCase, result *interfaces.ExecutionResult) {
	r.logger.LogExecution(tc.ID, result.Duration, result.Status.String(), logrus.Fields{
		"path": result.Path,
		"size": len(tc.Data),
	})
}

// OnTestCaseAdded logs the mutation that produced a kept test case
func (r *Reporter) OnTestCaseAdded(tc *interfaces.TestCase) {
	mutator, _ := tc.Metadata["mutator"].(string)
	if mutator == "" {
		mutator = "seed"
	}
	r.logger.LogMutation(tc.ParentID, tc.ID, mutator, logrus.Fields{
		"generation": tc.Generation,
		"priority":   tc.Priority,
	})
}

// OnCrash logs a unique crash
func (r *Reporter) OnCrash(record *core.CrashRecord) {
	r.logger.LogCrash(record.TestCaseID, record.Crash.Type, logrus.Fields{
		"hash":    record.Hash,
		"message": record.Crash.Message,
		"file":    record.Path,
	})
}

var _ core.Reporter = (*Reporter)(nil)
