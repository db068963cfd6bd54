/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: harness.go
Description: Fuzzing harness adapter for the IMG! decoder. Exposes libFuzzer-style
and go-fuzz-style entry points plus a Harness that drives a target either in
persistent mode (one call per supplied input, process stays alive) or in
single-shot mode (read one bounded buffer from a stream, run once). The harness
never recovers panics: an out-of-bounds access must reach the instrumentation
layer as a crash.
*/

package harness

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/sirupsen/logrus"
)

// DefaultMaxInput bounds single-shot reads, matching the AFL stdin buffer
const DefaultMaxInput = 1024

// LegacyMaxInput fits any header plus a payload past the largest declared size
const LegacyMaxInput = imgparse.HeaderSize + imgparse.MaxDeclaredSize

// DefaultMaxInputFor returns the read bound for the named target. The legacy
// overflow needs a payload longer than 100x100, which DefaultMaxInput cuts off.
func DefaultMaxInputFor(name string) int {
	if name == "legacy" {
		return LegacyMaxInput
	}
	return DefaultMaxInput
}

// Target is a function under test. The returned int is the harness status.
type Target func(data []byte) int

// RunOne feeds data to the parser and returns 0. The status carries no
// meaning beyond "did not crash".
func RunOne(data []byte) int {
	imgparse.Parse(data)
	return 0
}

// Fuzz is the go-fuzz entry point. It returns 1 for inputs that reached
// the payload copy, 0 for accepted inputs with nothing to copy and -1 for
// rejected inputs so the engine does not add them to its corpus.
func Fuzz(data []byte) int {
	out := imgparse.Parse(data)
	if !out.IsAccepted() {
		return -1
	}
	if out.CopiedBytes > 0 {
		return 1
	}
	return 0
}

// RunLegacy drives the historical routine that overflows its buffer
func RunLegacy(data []byte) int {
	imgparse.ParseLegacy(data)
	return 0
}

// Targets lists the named entry points a harness can drive
var Targets = map[string]Target{
	"parser": RunOne,
	"gofuzz": Fuzz,
	"legacy": RunLegacy,
}

// LookupTarget returns the named target or an error listing the valid names
func LookupTarget(name string) (Target, error) {
	if t, ok := Targets[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown target %q (available: %v)", name, TargetNames())
}

// TargetNames returns the registered target names in sorted order
func TargetNames() []string {
	names := make([]string, 0, len(Targets))
	for name := range Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Harness drives a Target over a stream of inputs
type Harness struct {
	Target   Target
	MaxInput int
	Logger   *logrus.Logger

	// Verbose logs the parse outcome of every input at debug level
	Verbose bool
}

// New creates a harness for the given target with default bounds
func New(target Target, logger *logrus.Logger) *Harness {
	if logger == nil {
		logger = logrus.New()
	}
	return &Harness{
		Target:   target,
		MaxInput: DefaultMaxInput,
		Logger:   logger,
	}
}

// Execute runs one input through the target
func (h *Harness) Execute(data []byte) int {
	status := h.Target(data)
	if h.Verbose {
		h.report(data, status)
	}
	return status
}

// RunPersistent executes every input received on inputs until the channel
// closes or ctx is cancelled. Returns the number of executions performed.
func (h *Harness) RunPersistent(ctx context.Context, inputs <-chan []byte) (int64, error) {
	var executions int64
	for {
		select {
		case <-ctx.Done():
			return executions, ctx.Err()
		case data, ok := <-inputs:
			if !ok {
				return executions, nil
			}
			h.Execute(data)
			executions++
		}
	}
}

// RunSingleShot reads at most MaxInput bytes from r and executes them once
func (h *Harness) RunSingleShot(r io.Reader) (int, error) {
	limit := h.MaxInput
	if limit <= 0 {
		limit = DefaultMaxInput
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return 0, fmt.Errorf("failed to read input: %w", err)
	}

	h.Logger.WithFields(logrus.Fields{
		"bytes": len(data),
		"limit": limit,
	}).Debug("Single-shot input read")

	return h.Execute(data), nil
}

// report logs the decoder outcome for data. Parse is pure, so calling it
// again here does not influence the target run.
func (h *Harness) report(data []byte, status int) {
	out := imgparse.Parse(data)
	fields := logrus.Fields{
		"size":     len(data),
		"status":   status,
		"accepted": out.Accepted,
	}
	if out.Accepted {
		fields["width"] = out.Header.Width
		fields["height"] = out.Header.Height
		fields["copied_bytes"] = out.CopiedBytes
	} else {
		fields["reason"] = out.Reason.String()
	}
	h.Logger.WithFields(fields).Debug("Harness input processed")
}
