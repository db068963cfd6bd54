/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzz.go
Description: Fuzz command implementation for imgfuzz. Builds the campaign from flags
and config, runs the engine until a stop condition or signal, prints live and final
statistics and writes the campaign report and metrics snapshot. Optionally records
pprof profiles of the run.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/kleascm/imgfuzz/pkg/logging"
	"github.com/kleascm/imgfuzz/pkg/monitoring"
	"github.com/kleascm/imgfuzz/pkg/reporting"
	"github.com/kleascm/imgfuzz/pkg/strategies"
	"github.com/kleascm/imgfuzz/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunFuzz executes the main fuzzing process
func RunFuzz(cmd *cobra.Command, args []string) error {
	printHeader("🚀", "Starting Fuzzing Session")

	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	config := createFuzzerConfig()

	if viper.GetBool("dry_run") {
		return performDryRun(config, logger.GetLogger())
	}

	if err := validateFuzzerConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	engine, collector, err := setupFuzzerComponents(config, logger)
	if err != nil {
		return fmt.Errorf("failed to setup fuzzer components: %w", err)
	}

	if err := engine.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := viper.GetString("profile_dir"); dir != "" {
		profiler := monitoring.NewProfiler(dir, logger.GetLogger())
		if err := profiler.Start(); err != nil {
			return err
		}
		defer func() {
			if _, err := profiler.Stop(); err != nil {
				logger.GetLogger().WithError(err).Warn("Failed to write profiles")
			}
		}()
	}

	monitor := monitoring.NewResourceMonitor(nil, logger.GetLogger())
	if err := monitor.Start(ctx); err != nil {
		return err
	}

	if err := engine.Start(); err != nil {
		monitor.Stop()
		return fmt.Errorf("failed to start fuzzer: %w", err)
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	go reportStats(statsCtx, engine, logger)

	select {
	case <-engine.Done():
	case <-ctx.Done():
		fmt.Println("\n🛑 Received shutdown signal, stopping fuzzer...")
	}
	stopStats()

	if err := engine.Stop(); err != nil {
		return fmt.Errorf("failed to stop fuzzer: %w", err)
	}
	monitor.Stop()

	printFinalStats(engine)

	if err := writeCampaignResults(engine, collector, monitor, config, logger.GetLogger()); err != nil {
		return err
	}

	fmt.Println("\n✨ Fuzzing session completed!")
	return nil
}

// setupFuzzerComponents creates the engine and wires executor, mutators,
// scheduler and reporters into it
func setupFuzzerComponents(config *interfaces.FuzzerConfig, logger *logging.Logger) (*core.Engine, *reporting.Collector, error) {
	executor, err := newExecutor(config, logger.GetLogger())
	if err != nil {
		return nil, nil, err
	}

	mutators, err := strategies.Build(viper.GetStringSlice("mutators"), config.MutationRate, config.MaxInput)
	if err != nil {
		return nil, nil, err
	}

	engine := core.NewEngine(logger.GetLogger())
	engine.SetExecutor(executor)
	engine.SetMutators(mutators)
	engine.SetScheduler(core.NewScheduler(viper.GetString("scheduler")))

	collector := reporting.NewCollector()
	engine.AddReporter(logging.NewReporter(logger))
	engine.AddReporter(collector)

	return engine, collector, nil
}

// validateFuzzerConfig validates the fuzzer configuration
func validateFuzzerConfig(config *interfaces.FuzzerConfig) error {
	if _, err := harness.LookupTarget(config.Target); err != nil {
		return err
	}

	if config.Executor == "process" && config.HarnessPath == "" {
		return fmt.Errorf("--harness is required with the process executor")
	}

	if config.CorpusDir != "" {
		info, err := os.Stat(config.CorpusDir)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("corpus path is not a directory: %s", config.CorpusDir)
		}
	}

	if config.MutationRate < 0 || config.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be between 0 and 1, got %v", config.MutationRate)
	}

	return nil
}

// reportStats periodically reports fuzzer statistics
func reportStats(ctx context.Context, engine *core.Engine, logger *logging.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := engine.GetStats()
			logger.LogStats(stats.Executions, stats.UniqueCrashes, stats.Paths, stats.ExecutionsPerSecond, logrus.Fields{
				"corpus_size": stats.CorpusSize,
				"timeouts":    stats.Timeouts,
			})
		}
	}
}

// printFinalStats prints the final campaign statistics
func printFinalStats(engine *core.Engine) {
	stats := engine.GetStats()
	duration := time.Since(stats.StartTime)

	fmt.Println("\n📊 Final Statistics")
	fmt.Println("==================")
	fmt.Printf("Total Runtime: %v\n", duration.Round(time.Millisecond))
	fmt.Printf("Total Executions: %d\n", stats.Executions)
	fmt.Printf("Total Crashes: %d\n", stats.Crashes)
	fmt.Printf("Unique Crashes: %d\n", stats.UniqueCrashes)
	fmt.Printf("Total Timeouts: %d\n", stats.Timeouts)
	fmt.Printf("Executor Errors: %d\n", stats.Errors)
	fmt.Printf("Parser Paths: %d\n", stats.Paths)
	fmt.Printf("Corpus Size: %d\n", stats.CorpusSize)
	if duration > 0 {
		fmt.Printf("Average Rate: %.1f executions/sec\n", float64(stats.Executions)/duration.Seconds())
	}

	if stats.UniqueCrashes > 0 {
		fmt.Printf("Last Crash: %v\n", stats.LastCrashTime.Format("2006-01-02 15:04:05"))
		for _, rec := range engine.Crashes() {
			fmt.Printf("  💥 %s %s x%d -> %s\n", rec.Hash, rec.Crash.Type, rec.Count, rec.Path)
		}
	}
}

// writeCampaignResults writes the JSON/HTML report and a metrics snapshot
func writeCampaignResults(engine *core.Engine, collector *reporting.Collector, monitor *monitoring.ResourceMonitor, config *interfaces.FuzzerConfig, logger *logrus.Logger) error {
	report := collector.BuildReport(engine)
	peak := monitor.Peak()
	report.PeakMemory = &peak
	report.MemoryAlerts = monitor.Alerts()

	jsonPath, htmlPath, err := reporting.NewGenerator(filepath.Join(config.OutputDir, "reports"), logger).Write(report)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("\n📄 Report: %s\n", htmlPath)
	fmt.Printf("📄 Data:   %s\n", jsonPath)

	metricsPath, err := utils.WriteMetricsResult(filepath.Join(config.OutputDir, "metrics"), "fuzz", Version, report.Stats)
	if err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	fmt.Printf("📈 Metrics: %s\n", metricsPath)
	return nil
}

// performDryRun validates configuration without starting fuzzing
func performDryRun(config *interfaces.FuzzerConfig, logger *logrus.Logger) error {
	fmt.Println("🔍 Performing dry run validation...")
	fmt.Println()

	if err := validateFuzzerConfig(config); err != nil {
		return err
	}
	fmt.Printf("✅ Target: %s (max input %d bytes)\n", config.Target, config.MaxInput)

	executor, err := openExecutor(config, logger)
	if err != nil {
		return err
	}
	defer executor.Cleanup()
	fmt.Printf("✅ Executor: %s\n", config.Executor)

	mutators, err := strategies.Build(viper.GetStringSlice("mutators"), config.MutationRate, config.MaxInput)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Mutators: %d configured\n", len(mutators))

	if config.CorpusDir != "" {
		cases, err := core.LoadTestCases(config.CorpusDir)
		if err != nil {
			return fmt.Errorf("corpus directory validation failed: %w", err)
		}
		fmt.Printf("✅ Corpus files: %d found\n", len(cases))
	} else {
		fmt.Printf("✅ Corpus: %d built-in seeds\n", len(core.DefaultSeeds()))
	}

	for _, dir := range []string{config.OutputDir, config.CrashDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		fmt.Printf("✅ Output directory: %s\n", dir)
	}

	fmt.Println("\n✨ Dry run validation completed successfully!")
	return nil
}
