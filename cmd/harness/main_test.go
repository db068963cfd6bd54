/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main_test.go
Description: Tests for the single-shot harness command: stdin bounds per target, exit
status mapping and the abnormal exit of a crashing legacy input.
*/

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func image(width, height uint8, payload int) []byte {
	return imgparse.Encode(imgparse.Header{Width: width, Height: height}, bytes.Repeat([]byte{'A'}, payload))
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		input []byte
		want  int
	}{
		{"parser accepted", []string{"--target", "parser"}, image(2, 2, 4), 0},
		{"parser rejected", []string{"--target", "parser"}, []byte("XYZ?\x01\x01"), 0},
		{"default target", nil, image(100, 100, 20000), 0},
		{"gofuzz copied", []string{"--target", "gofuzz"}, image(2, 2, 4), 1},
		{"gofuzz nothing copied", []string{"--target", "gofuzz"}, image(0, 9, 4), 0},
		{"gofuzz rejected maps to zero", []string{"--target", "gofuzz"}, []byte("IMG"), 0},
		{"gofuzz bound cuts payload", []string{"--target", "gofuzz", "--max-input", "6"}, image(2, 2, 4), 0},
		{"legacy below overflow", []string{"--target", "legacy"}, image(100, 100, 500), 0},
		{"legacy crash cut by explicit bound", []string{"--target", "legacy", "--max-input", "1024"}, image(100, 100, 12000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := run(tt.args, bytes.NewReader(tt.input), io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestRunLegacyDefaultBoundReachesOverflow(t *testing.T) {
	crash := image(100, 100, 12000)
	require.Less(t, harness.DefaultMaxInput, len(crash))

	assert.PanicsWithError(t, "runtime error: slice bounds out of range [:12000] with capacity 10000", func() {
		run([]string{"--target", "legacy"}, bytes.NewReader(crash), io.Discard)
	})
}

func TestRunUsageErrors(t *testing.T) {
	code, err := run([]string{"--target", "png"}, bytes.NewReader(nil), io.Discard)
	assert.Error(t, err)
	assert.Equal(t, 1, code)

	code, err = run([]string{"--bogus"}, bytes.NewReader(nil), io.Discard)
	assert.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(-1))
	assert.Equal(t, 0, exitCode(0))
	assert.Equal(t, 1, exitCode(1))
	assert.Equal(t, 255, exitCode(255))
	assert.Equal(t, 0, exitCode(256))
}

// TestLegacyCrashExitsAbnormally re-runs the test binary as the harness so the
// unrecovered panic reaches the Go runtime.
func TestLegacyCrashExitsAbnormally(t *testing.T) {
	if args := os.Getenv("IMGHARNESS_ARGS"); args != "" {
		code, err := run(strings.Fields(args), os.Stdin, os.Stderr)
		if err != nil {
			os.Exit(1)
		}
		os.Exit(code)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestLegacyCrashExitsAbnormally$")
	cmd.Env = append(os.Environ(), "IMGHARNESS_ARGS=--target legacy")
	cmd.Stdin = bytes.NewReader(image(100, 100, 12000))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected abnormal exit, got %v", err)
	assert.Equal(t, 2, exitErr.ExitCode())
	assert.Contains(t, stderr.String(), "panic: runtime error: slice bounds out of range")
	assert.Contains(t, stderr.String(), "imgparse.ParseLegacy")
}
