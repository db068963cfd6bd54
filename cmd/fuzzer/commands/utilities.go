/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utilities.go
Description: Utility commands for imgfuzz. Provides list-mutators, seed corpus
generation, crash directory triage and corpus/crash minimization.
*/

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/kleascm/imgfuzz/pkg/strategies"
	"github.com/spf13/cobra"
)

// ListMutators lists all available mutators
func ListMutators(cmd *cobra.Command, args []string) {
	printHeader("🧬", "Available Mutators")

	for i, name := range strategies.Names() {
		mutators, err := strategies.Build([]string{name}, 0.01, harness.DefaultMaxInput)
		if err != nil || len(mutators) == 0 {
			continue
		}
		fmt.Printf("%d. %s (%s)\n", i+1, name, mutators[0].Name())
		fmt.Printf("   %s\n", mutators[0].Description())
		fmt.Println()
	}

	fmt.Println("composite")
	fmt.Println("   Chains two randomly ordered mutators from the selection")
	fmt.Println()
	fmt.Println("✨ Use --mutators to pick a subset, e.g. --mutators header,resize,composite")
}

// WriteSeedCorpus writes the built-in IMG! seeds into a directory
func WriteSeedCorpus(cmd *cobra.Command, args []string) error {
	printHeader("🌱", "Seed Corpus")

	output, _ := cmd.Flags().GetString("output")
	paths, err := core.WriteSeeds(output, core.DefaultSeeds())
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Printf("💾 %s\n", path)
	}
	fmt.Printf("\n✅ Wrote %d seeds to %s\n", len(paths), output)
	return nil
}

// PerformCrashTriage replays every input in a crash directory and buckets
// the crashes by cause
func PerformCrashTriage(cmd *cobra.Command, args []string) error {
	printHeader("🚨", "Crash Triage")

	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	cases, err := core.LoadTestCases(args[0])
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Printf("No crash files found in %s\n", args[0])
		return nil
	}

	config := createFuzzerConfig()
	executor, err := openExecutor(config, logger.GetLogger())
	if err != nil {
		return err
	}
	defer executor.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := core.NewReplayer(executor, config.Workers, logger.GetLogger()).Run(ctx, cases)
	if err != nil {
		return err
	}

	engine := analysis.NewCrashTriageEngine()
	var triaged []*analysis.TriageResult
	for _, r := range results {
		if r.Result != nil && r.Result.Status == interfaces.StatusCrash && r.Result.CrashInfo != nil {
			triaged = append(triaged, engine.TriageCrash(r.Result.CrashInfo, r.Result))
		}
	}
	buckets := analysis.Bucketize(triaged)

	summary := core.Summarize(results)
	fmt.Printf("📊 Replayed %d inputs: %d crashes, %d timeouts, %d errors, %d clean\n",
		summary.Total, summary.Crashes, summary.Timeouts, summary.Errors, summary.Success)
	fmt.Println()

	for _, b := range buckets {
		fmt.Printf("[%s] %s x%d\n", b.Severity, b.CrashType, b.Count)
		fmt.Printf("   %s\n", b.Cause)
		for _, hash := range b.Hashes {
			fmt.Printf("   - %s\n", hash)
		}
	}

	if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
		data, err := json.MarshalIndent(buckets, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal buckets: %w", err)
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write buckets: %w", err)
		}
		fmt.Printf("\n💾 Buckets written to %s\n", jsonPath)
	}
	return nil
}

// PerformMinimize deduplicates a corpus directory or shrinks a crash input
func PerformMinimize(cmd *cobra.Command, args []string) error {
	printHeader("✂️ ", "Minimize")

	corpusDir, _ := cmd.Flags().GetString("corpus")
	crashFile, _ := cmd.Flags().GetString("crash")
	output, _ := cmd.Flags().GetString("output")
	maxAttempts, _ := cmd.Flags().GetInt("max-attempts")

	switch {
	case corpusDir != "" && crashFile != "":
		return fmt.Errorf("use either --corpus or --crash, not both")
	case corpusDir != "":
		if output == "" {
			output = corpusDir + "_min"
		}
		return dedupeCorpusDir(corpusDir, output)
	case crashFile != "":
		if output == "" {
			output = crashFile + ".min"
		}
	default:
		return fmt.Errorf("one of --corpus or --crash is required")
	}

	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	data, err := os.ReadFile(crashFile)
	if err != nil {
		return fmt.Errorf("failed to read crash file: %w", err)
	}

	config := createFuzzerConfig()
	executor, err := openExecutor(config, logger.GetLogger())
	if err != nil {
		return err
	}
	defer executor.Cleanup()

	testCase := &interfaces.TestCase{ID: filepath.Base(crashFile), Data: data}
	first, err := executor.Execute(testCase)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	if first.Status != interfaces.StatusCrash {
		return fmt.Errorf("%s: %w", crashFile, analysis.ErrNotReproducible)
	}
	return minimizeCrashFile(executor, testCase, first.CrashInfo, output, maxAttempts)
}

// dedupeCorpusDir copies each distinct input of dir into output
func dedupeCorpusDir(dir, output string) error {
	cases, err := core.LoadTestCases(dir)
	if err != nil {
		return err
	}
	kept, dropped := analysis.DedupeCorpus(cases)

	if err := os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, tc := range kept {
		if err := os.WriteFile(filepath.Join(output, tc.ID), tc.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", tc.ID, err)
		}
	}

	fmt.Printf("📊 %d inputs, %d unique, %d duplicates removed\n", len(cases), len(kept), dropped)
	fmt.Printf("💾 Minimized corpus: %s\n", output)
	return nil
}
