/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: run.go
Description: Harness commands for imgfuzz. run drives the selected target over stdin or
a set of files, parse prints the decoded outcome of each file.
*/

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kleascm/imgfuzz/pkg/execution"
	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/spf13/cobra"
)

// RunHarness runs inputs through the configured harness target
func RunHarness(cmd *cobra.Command, args []string) error {
	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	config := createFuzzerConfig()
	target, err := harness.LookupTarget(config.Target)
	if err != nil {
		return err
	}

	h := harness.New(target, logger.GetLogger())
	h.MaxInput = config.MaxInput
	h.Verbose, _ = cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		status, err := h.RunSingleShot(cmd.InOrStdin())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "status=%d\n", status)
		return nil
	}

	cases, err := loadInputs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputs := make(chan []byte)
	go func() {
		defer close(inputs)
		for _, tc := range cases {
			data := tc.Data
			if len(data) > h.MaxInput {
				data = data[:h.MaxInput]
			}
			select {
			case inputs <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	executions, err := h.RunPersistent(ctx, inputs)
	fmt.Fprintf(out, "✅ Executed %d inputs through %s\n", executions, config.Target)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// parseReport is the JSON form printed by parse --json
type parseReport struct {
	File    string           `json:"file"`
	Size    int              `json:"size"`
	Outcome imgparse.Outcome `json:"outcome"`
	Path    string           `json:"path"`
	Error   string           `json:"error,omitempty"`
}

// PerformParse parses each file and prints the outcome
func PerformParse(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	var reports []parseReport
	for _, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		outcome := imgparse.Parse(data)
		report := parseReport{
			File:    file,
			Size:    len(data),
			Outcome: outcome,
			Path:    execution.ParserSignature(data),
		}
		if err := outcome.Err(); err != nil {
			report.Error = err.Error()
		}

		if asJSON {
			reports = append(reports, report)
			continue
		}

		fmt.Fprintf(out, "%s: %s\n", file, outcome)
		if outcome.Accepted {
			fmt.Fprintf(out, "  header:  %dx%d (declared %d bytes)\n", outcome.Header.Width, outcome.Header.Height, outcome.Header.DeclaredSize())
			fmt.Fprintf(out, "  payload: %d available, %d copied\n", outcome.Payload.AvailableSize, outcome.CopiedBytes)
		}
		fmt.Fprintf(out, "  path:    %s\n", report.Path)
	}

	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}
	return nil
}
