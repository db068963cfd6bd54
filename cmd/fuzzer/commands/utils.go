/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the imgfuzz commands. Provides configuration loading,
logging setup, campaign configuration and executor construction used across all
command implementations.
*/

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kleascm/imgfuzz/pkg/core"
	"github.com/kleascm/imgfuzz/pkg/execution"
	"github.com/kleascm/imgfuzz/pkg/harness"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/kleascm/imgfuzz/pkg/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Version is the imgfuzz release version
const Version = "1.0.0"

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	viper.SetEnvPrefix("IMGFUZZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// SetupLogging creates the logger described by the log_* settings
func SetupLogging() (*logging.Logger, error) {
	config := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    logging.LogFormat(viper.GetString("log_format")),
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		Timestamp: true,
		Colors:    true,
		Console:   os.Stderr,
	}
	return logging.NewLogger(config)
}

// prepare loads configuration and sets up logging for a command
func prepare() (*logging.Logger, error) {
	if err := LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := SetupLogging()
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// createFuzzerConfig builds the campaign configuration from viper
func createFuzzerConfig() *interfaces.FuzzerConfig {
	config := &interfaces.FuzzerConfig{
		Target:        viper.GetString("target"),
		Executor:      viper.GetString("executor"),
		HarnessPath:   viper.GetString("harness_path"),
		Workers:       viper.GetInt("workers"),
		Timeout:       viper.GetDuration("timeout"),
		Duration:      viper.GetDuration("duration"),
		MaxExecutions: viper.GetInt64("max_executions"),
		MaxInput:      viper.GetInt("max_input"),
		CorpusDir:     viper.GetString("corpus_dir"),
		OutputDir:     viper.GetString("output_dir"),
		CrashDir:      viper.GetString("crash_dir"),
		MaxCorpusSize: viper.GetInt("max_corpus_size"),
		MutationRate:  viper.GetFloat64("mutation_rate"),
		MaxMutations:  viper.GetInt("max_mutations"),
		MaxCrashes:    viper.GetInt("max_crashes"),
		LogLevel:      viper.GetString("log_level"),
	}
	applyDefaults(config)
	return config
}

// applyDefaults fills unset fields of config
func applyDefaults(config *interfaces.FuzzerConfig) {
	if config.Target == "" {
		config.Target = "parser"
	}
	if config.Executor == "" {
		config.Executor = "inprocess"
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MaxInput <= 0 {
		config.MaxInput = harness.DefaultMaxInputFor(config.Target)
	}
	if config.OutputDir == "" {
		config.OutputDir = "./fuzz_output"
	}
	if config.CrashDir == "" {
		config.CrashDir = filepath.Join(config.OutputDir, "crashes")
	}
}

// newExecutor creates the executor named by config.Executor
func newExecutor(config *interfaces.FuzzerConfig, logger *logrus.Logger) (interfaces.Executor, error) {
	switch config.Executor {
	case "", "inprocess":
		return execution.NewInProcessExecutor(nil, logger), nil
	case "process":
		return execution.NewProcessExecutor(logger), nil
	default:
		return nil, fmt.Errorf("unknown executor %q (available: inprocess, process)", config.Executor)
	}
}

// openExecutor creates and initializes an executor for replay commands
func openExecutor(config *interfaces.FuzzerConfig, logger *logrus.Logger) (interfaces.Executor, error) {
	executor, err := newExecutor(config, logger)
	if err != nil {
		return nil, err
	}
	if err := executor.Initialize(config); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}
	return executor, nil
}

// loadInputs reads files and directories into test cases
func loadInputs(paths []string) ([]*interfaces.TestCase, error) {
	var cases []*interfaces.TestCase
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			dirCases, err := core.LoadTestCases(path)
			if err != nil {
				return nil, err
			}
			cases = append(cases, dirCases...)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cases = append(cases, &interfaces.TestCase{
			ID:        filepath.Base(path),
			Data:      data,
			CreatedAt: time.Now(),
			Metadata:  map[string]interface{}{"file": path},
		})
	}
	return cases, nil
}

// printHeader prints a command banner
func printHeader(icon, title string) {
	line := "imgfuzz - " + title
	fmt.Println(icon + " " + line)
	fmt.Println(strings.Repeat("=", len(line)+3))
	fmt.Println()
}
