/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reproduction.go
Description: Crash reproduction command implementation for imgfuzz. Replays a saved crash
input through the configured executor, triages the crash and optionally shrinks the
input to a minimal reproducer.
*/

package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// PerformCrashReproduction reproduces and analyzes a crash file
func PerformCrashReproduction(cmd *cobra.Command, args []string) error {
	printHeader("🔄", "Crash Reproduction")

	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	crashFile := args[0]
	attempts, _ := cmd.Flags().GetInt("attempts")
	minimize, _ := cmd.Flags().GetBool("minimize")
	if attempts <= 0 {
		attempts = 1
	}

	crashData, err := os.ReadFile(crashFile)
	if err != nil {
		return fmt.Errorf("failed to read crash file: %w", err)
	}

	config := createFuzzerConfig()
	executor, err := openExecutor(config, logger.GetLogger())
	if err != nil {
		return err
	}
	defer executor.Cleanup()

	fmt.Printf("📁 Crash file: %s (%d bytes)\n", crashFile, len(crashData))
	fmt.Printf("🎯 Target: %s via %s executor\n", config.Target, config.Executor)
	fmt.Printf("🔄 Attempts: %d\n", attempts)
	fmt.Println()

	testCase := &interfaces.TestCase{
		ID:        "reproduction",
		Data:      crashData,
		CreatedAt: time.Now(),
		Metadata:  map[string]interface{}{"file": crashFile},
	}

	var (
		first      *interfaces.ExecutionResult
		reproduced int
	)
	for i := 0; i < attempts; i++ {
		result, err := executor.Execute(testCase)
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		if result.Status == interfaces.StatusCrash {
			reproduced++
			if first == nil {
				first = result
			}
		}
		logger.GetLogger().WithFields(logrus.Fields{
			"attempt": i + 1,
			"status":  result.Status.String(),
			"path":    result.Path,
		}).Debug("Reproduction attempt finished")
	}

	fmt.Printf("📊 Reproduced: %d/%d (%.0f%%)\n", reproduced, attempts, float64(reproduced)*100/float64(attempts))
	if first == nil {
		fmt.Println("✅ Input does not crash the target")
		return nil
	}

	triage := analysis.NewCrashTriageEngine().TriageCrash(first.CrashInfo, first)
	printTriage(triage)

	if minimize {
		return minimizeCrashFile(executor, testCase, first.CrashInfo, crashFile+".min", 0)
	}
	return nil
}

// printTriage prints a single triage result
func printTriage(t *analysis.TriageResult) {
	fmt.Println()
	fmt.Println("🚨 Crash Analysis")
	fmt.Println("=================")
	fmt.Printf("Type:       %s\n", t.CrashType)
	fmt.Printf("Severity:   %s\n", t.Severity)
	fmt.Printf("Cause:      %s\n", t.Cause)
	fmt.Printf("Hash:       %s\n", t.StackHash)
	fmt.Printf("Confidence: %.2f\n", t.Confidence)
	if t.CrashInfo != nil && len(t.CrashInfo.StackTrace) > 0 {
		fmt.Println("Frames:")
		for _, frame := range t.CrashInfo.StackTrace {
			fmt.Printf("  %s\n", frame)
		}
	}
}

// minimizeCrashFile shrinks testCase while it keeps producing the crash hash of
// original and writes the result to output
func minimizeCrashFile(executor interfaces.Executor, testCase *interfaces.TestCase, original *interfaces.CrashInfo, output string, maxAttempts int) error {
	fmt.Println()
	fmt.Println("✂️  Minimizing crash input...")

	sameCrash := func(data []byte) bool {
		result, err := executor.Execute(&interfaces.TestCase{ID: testCase.ID, Data: data})
		if err != nil || result.Status != interfaces.StatusCrash || result.CrashInfo == nil {
			return false
		}
		return original == nil || original.Hash == "" || result.CrashInfo.Hash == original.Hash
	}

	result, err := analysis.MinimizeCrash(testCase.Data, sameCrash, maxAttempts)
	if err != nil {
		return fmt.Errorf("minimization failed: %w", err)
	}
	if err := os.WriteFile(output, result.Data, 0644); err != nil {
		return fmt.Errorf("failed to write minimized input: %w", err)
	}

	fmt.Printf("✅ %d -> %d bytes (%.1f%% smaller, %d executions)\n",
		result.OriginalSize, len(result.Data), result.Reduction()*100, result.Attempts)
	fmt.Printf("💾 Saved: %s\n", output)
	return nil
}
