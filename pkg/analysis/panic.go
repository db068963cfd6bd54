/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: panic.go
Description: Extracts the panic message and goroutine frames from Go crash output, both
from a recovered panic's debug.Stack and from the stderr of a harness process that died.
*/

package analysis

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// GoPanic is a parsed Go panic report
type GoPanic struct {
	Message string
	Frames  []string
}

// ParseGoPanic finds a "panic: ..." report in process output.
// Returns false when the output holds no panic.
func ParseGoPanic(output []byte) (*GoPanic, bool) {
	idx := bytes.Index(output, []byte("panic: "))
	if idx < 0 {
		return nil, false
	}
	rest := output[idx+len("panic: "):]

	message := rest
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
		message = rest[:nl]
	}

	msg := strings.TrimSpace(string(message))
	msg = strings.TrimSuffix(msg, " [recovered]")
	return &GoPanic{
		Message: msg,
		Frames:  StackFrames(rest),
	}, true
}

// StackFrames returns the function frames of the first goroutine trace in
// stack, starting below the panic machinery. File/line lines are dropped.
func StackFrames(stack []byte) []string {
	var frames []string
	inTrace := false

	scanner := bufio.NewScanner(bytes.NewReader(stack))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "goroutine "):
			if inTrace {
				return trimPanicFrames(frames)
			}
			inTrace = true
		case !inTrace:
		case line == "":
			if len(frames) > 0 {
				return trimPanicFrames(frames)
			}
		case strings.HasPrefix(line, "\t"), strings.HasPrefix(line, "created by "), !strings.HasSuffix(line, ")"):
		default:
			frames = append(frames, NormalizeFrame(line))
		}
	}
	return trimPanicFrames(frames)
}

// trimPanicFrames drops everything up to the last panic frame and any
// runtime frames directly below it
func trimPanicFrames(frames []string) []string {
	start := 0
	for i, f := range frames {
		if f == "panic" || f == "runtime.gopanic" {
			start = i + 1
		}
	}
	frames = frames[start:]
	for len(frames) > 0 && strings.HasPrefix(frames[0], "runtime.") {
		frames = frames[1:]
	}
	return frames
}

// BuildCrashInfo turns a panic value and its stack into CrashInfo with a
// classified type and a deduplication hash
func BuildCrashInfo(value interface{}, stack []byte, input []byte) *interfaces.CrashInfo {
	message := fmt.Sprint(value)
	if err, ok := value.(error); ok {
		message = err.Error()
	}
	return newCrashInfo(message, StackFrames(stack), input)
}

// CrashInfoFromOutput builds CrashInfo from process stderr. A Go panic report
// is used when present, otherwise fallback is classified.
func CrashInfoFromOutput(stderr []byte, fallback string, input []byte) *interfaces.CrashInfo {
	if p, ok := ParseGoPanic(stderr); ok {
		return newCrashInfo(p.Message, p.Frames, input)
	}
	return newCrashInfo(fallback, nil, input)
}

var defaultTriage = NewCrashTriageEngine()

func newCrashInfo(message string, frames []string, input []byte) *interfaces.CrashInfo {
	crashType := defaultTriage.Classify(message)
	return &interfaces.CrashInfo{
		Type:       string(crashType),
		Message:    message,
		StackTrace: frames,
		Hash:       CrashHash(crashType, frames, message),
		Input:      append([]byte(nil), input...),
	}
}
