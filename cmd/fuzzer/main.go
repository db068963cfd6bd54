/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for the IMG! fuzzer. Wires cobra commands to the
campaign engine, harness, triage and reporting packages, with viper handling flags,
config files and IMGFUZZ_* environment variables.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/imgfuzz/cmd/fuzzer/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "imgfuzz",
		Short: "imgfuzz - fuzzing engine for the IMG! header parser",
		Long: `imgfuzz drives the IMG! header/payload parser with mutation based fuzzing.
Campaigns run in-process or against the external harness binary, track the parser
paths they reach, deduplicate crashes and write JSON and HTML reports.`,
		Version:      commands.Version,
		SilenceUsage: true,
	}

	// Shared flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Configuration file path (yaml, json, toml)")
	pf.String("log-level", "info", "Logging level (debug, info, warn, error)")
	pf.String("log-format", "custom", "Log format (text, json, custom, fuzzer)")
	pf.String("log-dir", "", "Log output directory (empty = console only)")
	pf.Int("log-max-files", 10, "Maximum number of log files to keep")

	pf.String("target", "parser", "Harness target (parser, gofuzz, legacy)")
	pf.String("executor", "inprocess", "Executor (inprocess, process)")
	pf.String("harness", "imgharness", "Harness binary used by the process executor")
	pf.Int("max-input", 0, "Largest input fed to the target (0 = harness default, larger for legacy)")
	pf.Duration("timeout", 5*time.Second, "Maximum execution time per test case")
	pf.Int("workers", 0, "Number of parallel workers (0 = number of CPUs)")

	bindFlags(pf, map[string]string{
		"config":        "config",
		"log_level":     "log-level",
		"log_format":    "log-format",
		"log_dir":       "log-dir",
		"log_max_files": "log-max-files",
		"target":        "target",
		"executor":      "executor",
		"harness_path":  "harness",
		"max_input":     "max-input",
		"timeout":       "timeout",
		"workers":       "workers",
	})

	// fuzz
	fuzzCmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Run a fuzzing campaign against the parser",
		Long: `Start a fuzzing campaign. Seeds come from --corpus, or from the built-in IMG!
seeds when the directory is empty or missing. The campaign stops on Ctrl+C or when
--duration, --max-executions or --max-crashes is reached, then writes a report.`,
		RunE: commands.RunFuzz,
	}
	ff := fuzzCmd.Flags()
	ff.String("corpus", "", "Directory containing the seed corpus")
	ff.String("output", "./fuzz_output", "Directory for reports and metrics")
	ff.String("crash-dir", "", "Directory for crash inputs (default <output>/crashes)")
	ff.Duration("duration", 0, "Campaign length (0 = until interrupted)")
	ff.Int64("max-executions", 0, "Stop after this many executions (0 = unlimited)")
	ff.Int("max-crashes", 0, "Stop after this many unique crashes (0 = unlimited)")
	ff.Int("max-corpus-size", 10000, "Maximum number of test cases in the corpus")
	ff.Float64("mutation-rate", 0.01, "Probability of mutation per byte")
	ff.Int("max-mutations", 5, "Mutation rounds per scheduling pass")
	ff.StringSlice("mutators", nil, "Mutators to use (default all, see list-mutators)")
	ff.String("scheduler", "path", "Scheduler (priority, path)")
	ff.Bool("dry-run", false, "Validate configuration and exit without fuzzing")
	ff.String("profile-dir", "", "Write CPU, heap and goroutine pprof profiles here")

	bindFlags(ff, map[string]string{
		"corpus_dir":      "corpus",
		"output_dir":      "output",
		"crash_dir":       "crash-dir",
		"duration":        "duration",
		"max_executions":  "max-executions",
		"max_crashes":     "max-crashes",
		"max_corpus_size": "max-corpus-size",
		"mutation_rate":   "mutation-rate",
		"max_mutations":   "max-mutations",
		"mutators":        "mutators",
		"scheduler":       "scheduler",
		"dry_run":         "dry-run",
		"profile_dir":     "profile-dir",
	})
	rootCmd.AddCommand(fuzzCmd)

	// run
	runCmd := &cobra.Command{
		Use:   "run [file|dir ...]",
		Short: "Run inputs through the harness",
		Long: `Without arguments, read one input from stdin and run it once (AFL style).
With files or directories, run every input in persistent mode. Panics in the target
are not recovered.`,
		RunE: commands.RunHarness,
	}
	runCmd.Flags().Bool("verbose", false, "Log the parse outcome of every input")
	rootCmd.AddCommand(runCmd)

	// parse
	parseCmd := &cobra.Command{
		Use:   "parse <file> [file ...]",
		Short: "Parse files and print the outcome",
		Args:  cobra.MinimumNArgs(1),
		RunE:  commands.PerformParse,
	}
	parseCmd.Flags().Bool("json", false, "Print outcomes as JSON")
	rootCmd.AddCommand(parseCmd)

	// reproduce
	reproduceCmd := &cobra.Command{
		Use:   "reproduce <crash-file>",
		Short: "Replay a crash file and triage the result",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.PerformCrashReproduction,
	}
	reproduceCmd.Flags().Int("attempts", 3, "Number of reproduction attempts")
	reproduceCmd.Flags().Bool("minimize", false, "Minimize the input and write <crash-file>.min")
	rootCmd.AddCommand(reproduceCmd)

	// triage
	triageCmd := &cobra.Command{
		Use:   "triage <crash-dir>",
		Short: "Replay a crash directory and bucket crashes by cause",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.PerformCrashTriage,
	}
	triageCmd.Flags().String("json", "", "Also write buckets to this JSON file")
	rootCmd.AddCommand(triageCmd)

	// minimize
	minimizeCmd := &cobra.Command{
		Use:   "minimize",
		Short: "Deduplicate a corpus or shrink a crashing input",
		Long: `With --corpus, copy every distinct input (by SHA-256) into --output.
With --crash, shrink the input while it still produces the same crash.`,
		RunE: commands.PerformMinimize,
	}
	minimizeCmd.Flags().String("corpus", "", "Corpus directory to deduplicate")
	minimizeCmd.Flags().String("crash", "", "Crashing input to shrink")
	minimizeCmd.Flags().String("output", "", "Output directory (corpus) or file (crash)")
	minimizeCmd.Flags().Int("max-attempts", 0, "Maximum executions while shrinking (0 = default)")
	rootCmd.AddCommand(minimizeCmd)

	// differential
	differentialCmd := &cobra.Command{
		Use:   "differential <corpus-dir>",
		Short: "Compare targets on the same corpus",
		Long: `Replay a corpus through several harness targets in-process and report inputs
whose execution status differs, such as the legacy routine crashing where the
parser accepts the input.`,
		Args: cobra.ExactArgs(1),
		RunE: commands.PerformDifferentialFuzzing,
	}
	differentialCmd.Flags().StringSlice("targets", []string{"parser", "legacy"}, "Targets to compare")
	differentialCmd.Flags().String("output", "./differential_output", "Directory for the differential metrics")
	rootCmd.AddCommand(differentialCmd)

	// seeds
	seedsCmd := &cobra.Command{
		Use:   "seeds",
		Short: "Write the built-in IMG! seed corpus",
		RunE:  commands.WriteSeedCorpus,
	}
	seedsCmd.Flags().String("output", "./corpus", "Directory to write seeds into")
	rootCmd.AddCommand(seedsCmd)

	// dashboard
	dashboardCmd := &cobra.Command{
		Use:   "dashboard <report.json>",
		Short: "Render an HTML dashboard from a saved JSON report",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.PerformDashboardGeneration,
	}
	dashboardCmd.Flags().String("output-dir", "./dashboard", "Output directory for dashboard files")
	dashboardCmd.Flags().String("title", "", "Override the report title")
	rootCmd.AddCommand(dashboardCmd)

	// list-mutators
	rootCmd.AddCommand(&cobra.Command{
		Use:   "list-mutators",
		Short: "List available mutators",
		Run:   commands.ListMutators,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bindFlags binds each viper key to the named flag
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
