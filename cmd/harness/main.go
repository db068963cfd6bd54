/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Single-shot harness binary. Reads one bounded buffer from stdin, runs it
through the selected target once and exits with the returned status. A panic in
the target is left to the Go runtime, so the process dies abnormally and an
external fuzz engine sees the crash.
*/

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	code, err := run(os.Args[1:], os.Stdin, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// run executes the harness command line and returns the process exit code.
// Panics from the target propagate to the caller.
func run(args []string, stdin io.Reader, stderr io.Writer) (int, error) {
	var (
		targetName string
		maxInput   int
		verbose    bool
		code       int
	)

	rootCmd := &cobra.Command{
		Use:   "imgharness",
		Short: "Run one stdin input through the IMG! parser",
		Long: `Reads at most --max-input bytes from standard input, feeds them to the
selected target once and exits with its status. Intended to be driven by
AFL-style engines or by 'imgfuzz fuzz --executor process'.

Without --max-input the bound depends on the target: 1024 bytes, or enough
for a full 255x255 image plus trailing data with the legacy target.

Exit codes: the target status for 0..255, 0 for negative statuses (the gofuzz
target returns -1 for rejected inputs), 1 for usage errors and 2 when the
target panics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := harness.LookupTarget(targetName)
			if err != nil {
				return err
			}

			logger := logrus.New()
			logger.SetOutput(stderr)
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			h := harness.New(target, logger)
			h.MaxInput = maxInput
			if h.MaxInput <= 0 {
				h.MaxInput = harness.DefaultMaxInputFor(targetName)
			}
			h.Verbose = verbose

			status, err := h.RunSingleShot(stdin)
			if err != nil {
				return err
			}
			code = exitCode(status)
			return nil
		},
	}

	rootCmd.Flags().StringVar(&targetName, "target", "parser", "Target to drive (parser, gofuzz, legacy)")
	rootCmd.Flags().IntVar(&maxInput, "max-input", 0, "Maximum number of bytes read from stdin (0 = target default)")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Log the parse outcome to stderr")

	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		return 1, err
	}
	return code, nil
}

// exitCode maps a target status onto a process exit status
func exitCode(status int) int {
	if status < 0 {
		return 0
	}
	return status & 0xFF
}
