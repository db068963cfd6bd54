/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter hooks for the IMG! fuzzer engine. Lets listeners observe
executions, corpus growth and newly found crashes.
*/

package core

import (
	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// Reporter is notified of engine events. Implementations must be safe for
// concurrent use; workers call them directly.
type Reporter interface {
	// OnTestCaseExecuted is called after a test case is executed
	OnTestCaseExecuted(tc *interfaces.TestCase, result *interfaces.ExecutionResult)
	// OnTestCaseAdded is called when a new test case enters the corpus
	OnTestCaseAdded(tc *interfaces.TestCase)
	// OnCrash is called once per unique crash
	OnCrash(record *CrashRecord)
}
