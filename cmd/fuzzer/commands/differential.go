/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: differential.go
Description: Differential command for imgfuzz. Replays one corpus through several harness
targets in-process and reports inputs whose execution status differs between them.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/execution"
	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// differentialResult is written to the differential metrics file
type differentialResult struct {
	Corpus      string                        `json:"corpus"`
	Targets     []string                      `json:"targets"`
	Inputs      int                           `json:"inputs"`
	Summaries   map[string]core.ReplaySummary `json:"summaries"`
	Divergences []core.Divergence             `json:"divergences"`
}

// PerformDifferentialFuzzing compares harness targets on the same corpus
func PerformDifferentialFuzzing(cmd *cobra.Command, args []string) error {
	printHeader("🔀", "Differential Replay")

	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	targets, _ := cmd.Flags().GetStringSlice("targets")
	outputDir, _ := cmd.Flags().GetString("output")
	if len(targets) < 2 {
		return fmt.Errorf("at least two targets are required, got %d", len(targets))
	}

	cases, err := core.LoadTestCases(args[0])
	if err != nil {
		return err
	}
	config := createFuzzerConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := differentialResult{
		Corpus:    args[0],
		Targets:   targets,
		Inputs:    len(cases),
		Summaries: make(map[string]core.ReplaySummary, len(targets)),
	}
	runs := make([][]core.ReplayResult, 0, len(targets))
	for _, name := range targets {
		target, err := harness.LookupTarget(name)
		if err != nil {
			return err
		}
		executor := execution.NewInProcessExecutor(target, logger.GetLogger())
		if err := executor.Initialize(config); err != nil {
			return err
		}

		results, err := core.NewReplayer(executor, config.Workers, logger.GetLogger()).Run(ctx, cases)
		if err != nil {
			return err
		}
		runs = append(runs, results)
		result.Summaries[name] = core.Summarize(results)

		logger.GetLogger().WithFields(logrus.Fields{
			"target": name,
			"inputs": len(results),
		}).Info("Corpus replayed")
	}

	result.Divergences = core.Diverge(targets, runs)

	fmt.Printf("📊 %d inputs replayed through %d targets\n", len(cases), len(targets))
	for _, name := range targets {
		s := result.Summaries[name]
		fmt.Printf("   %-8s success=%d crash=%d timeout=%d error=%d\n", name, s.Success, s.Crashes, s.Timeouts, s.Errors)
	}
	fmt.Println()

	if len(result.Divergences) == 0 {
		fmt.Println("✅ No divergences found")
	}
	for _, d := range result.Divergences {
		labels := make([]string, 0, len(d.Statuses))
		for label := range d.Statuses {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		fmt.Printf("⚠️  %s (%d bytes):", d.TestCaseID, d.Size)
		for _, label := range labels {
			fmt.Printf(" %s=%s", label, d.Statuses[label])
		}
		fmt.Println()
	}

	path, err := utils.WriteMetricsResult(outputDir, "differential", Version, result)
	if err != nil {
		return err
	}
	fmt.Printf("\n💾 Results: %s\n", path)
	return nil
}
