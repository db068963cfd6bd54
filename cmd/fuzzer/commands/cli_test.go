/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: cli_test.go
Description: End-to-end tests for the run, parse, reproduce, triage and differential
commands using the in-process executor.
*/

package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kleascm/imgfuzz/pkg/analysis"
	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useSettings resets viper to quiet logging plus the given keys
func useSettings(t *testing.T, settings map[string]interface{}) {
	t.Helper()
	viper.Reset()
	viper.Set("log_level", "error")
	viper.Set("log_format", "text")
	viper.Set("workers", 2)
	for k, v := range settings {
		viper.Set(k, v)
	}
	t.Cleanup(viper.Reset)
}

// newCommand builds a command with flags and captured output
func newCommand(t *testing.T, flags func(*pflag.FlagSet), set map[string]string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	if flags != nil {
		flags(cmd.Flags())
	}
	for name, value := range set {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(bytes.NewReader(nil))
	return cmd, &out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func imgInput(width, height uint8, payload int) []byte {
	return imgparse.Encode(imgparse.Header{Width: width, Height: height}, bytes.Repeat([]byte{'A'}, payload))
}

func TestPerformParseText(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.img", imgInput(2, 2, 4))
	bad := writeFile(t, dir, "bad.img", []byte("XYZ?\x01\x01"))

	cmd, out := newCommand(t, func(f *pflag.FlagSet) { f.Bool("json", false, "") }, nil)
	require.NoError(t, PerformParse(cmd, []string{good, bad}))

	text := out.String()
	assert.Contains(t, text, good+": Accepted(copied_bytes=4)")
	assert.Contains(t, text, "header:  2x2 (declared 4 bytes)")
	assert.Contains(t, text, bad+": Rejected(BadMagic)")
	assert.Error(t, PerformParse(cmd, []string{filepath.Join(dir, "missing")}))
}

func TestPerformParseJSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.img", imgInput(100, 100, 500))
	short := writeFile(t, dir, "short.img", []byte("IMG"))

	cmd, out := newCommand(t, func(f *pflag.FlagSet) { f.Bool("json", false, "") }, map[string]string{"json": "true"})
	require.NoError(t, PerformParse(cmd, []string{good, short}))

	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 2)

	first := reports[0]["outcome"].(map[string]interface{})
	assert.Equal(t, true, first["accepted"])
	assert.Equal(t, "None", first["reason"])
	assert.EqualValues(t, 500, first["copied_bytes"])
	assert.NotEmpty(t, reports[0]["path"])
	assert.Nil(t, reports[0]["error"])

	second := reports[1]["outcome"].(map[string]interface{})
	assert.Equal(t, false, second["accepted"])
	assert.Equal(t, "TooShort", second["reason"])
	assert.NotEmpty(t, reports[1]["error"])
}

func TestRunHarnessPersistentOverFiles(t *testing.T) {
	useSettings(t, map[string]interface{}{"target": "parser"})

	dir := t.TempDir()
	writeFile(t, dir, "a", imgInput(2, 2, 4))
	writeFile(t, dir, "b", []byte("XYZ?"))
	extra := writeFile(t, t.TempDir(), "c", imgInput(255, 255, 70000))

	cmd, out := newCommand(t, func(f *pflag.FlagSet) { f.Bool("verbose", false, "") }, map[string]string{"verbose": "true"})
	require.NoError(t, RunHarness(cmd, []string{dir, extra}))
	assert.Contains(t, out.String(), "Executed 3 inputs through parser")
}

func TestRunHarnessSingleShot(t *testing.T) {
	useSettings(t, map[string]interface{}{"target": "gofuzz"})

	cmd, out := newCommand(t, func(f *pflag.FlagSet) { f.Bool("verbose", false, "") }, nil)
	cmd.SetIn(bytes.NewReader(imgInput(2, 2, 4)))
	require.NoError(t, RunHarness(cmd, nil))
	assert.Equal(t, "status=1\n", out.String())
}

func TestRunHarnessLegacyCrashIsNotRecovered(t *testing.T) {
	useSettings(t, map[string]interface{}{"target": "legacy"})

	crash := writeFile(t, t.TempDir(), "crash", imgInput(100, 100, 12000))
	cmd, _ := newCommand(t, func(f *pflag.FlagSet) { f.Bool("verbose", false, "") }, nil)

	assert.Panics(t, func() { RunHarness(cmd, []string{crash}) })
}

func TestPerformCrashReproductionMinimizes(t *testing.T) {
	useSettings(t, map[string]interface{}{"target": "legacy", "executor": "inprocess"})

	crash := writeFile(t, t.TempDir(), "crash", imgInput(100, 100, 10050))
	cmd, _ := newCommand(t, func(f *pflag.FlagSet) {
		f.Int("attempts", 3, "")
		f.Bool("minimize", false, "")
	}, map[string]string{"attempts": "2", "minimize": "true"})

	require.NoError(t, PerformCrashReproduction(cmd, []string{crash}))

	minimized, err := os.ReadFile(crash + ".min")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(minimized), len(imgInput(100, 100, 10050)))
	assert.Panics(t, func() { imgparse.ParseLegacy(minimized) })
}

func TestPerformCrashReproductionCleanInput(t *testing.T) {
	useSettings(t, map[string]interface{}{"target": "parser"})

	clean := writeFile(t, t.TempDir(), "clean", imgInput(100, 100, 10050))
	cmd, _ := newCommand(t, func(f *pflag.FlagSet) {
		f.Int("attempts", 3, "")
		f.Bool("minimize", false, "")
	}, map[string]string{"minimize": "true"})

	require.NoError(t, PerformCrashReproduction(cmd, []string{clean}))
	_, err := os.Stat(clean + ".min")
	assert.True(t, os.IsNotExist(err))
}

func TestPerformCrashTriageBucketsLegacyCrashes(t *testing.T) {
	useSettings(t, map[string]interface{}{"target": "legacy"})

	dir := t.TempDir()
	writeFile(t, dir, "crash_a", imgInput(100, 100, 10001))
	writeFile(t, dir, "crash_b", imgInput(100, 100, 15000))
	writeFile(t, dir, "clean", imgInput(100, 100, 20))
	jsonPath := filepath.Join(t.TempDir(), "buckets.json")

	cmd, _ := newCommand(t, func(f *pflag.FlagSet) { f.String("json", "", "") }, map[string]string{"json": jsonPath})
	require.NoError(t, PerformCrashTriage(cmd, []string{dir}))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var buckets []analysis.Bucket
	require.NoError(t, json.Unmarshal(data, &buckets))
	require.Len(t, buckets, 1)
	assert.Equal(t, analysis.CrashTypeOutOfBounds, buckets[0].CrashType)
	assert.Equal(t, 2, buckets[0].Count)
}

func TestPerformDifferentialFindsLegacyDivergence(t *testing.T) {
	useSettings(t, nil)

	corpus := t.TempDir()
	writeFile(t, corpus, "crash", imgInput(100, 100, 12000))
	writeFile(t, corpus, "clean", imgInput(4, 4, 16))
	output := t.TempDir()

	cmd, _ := newCommand(t, func(f *pflag.FlagSet) {
		f.StringSlice("targets", []string{"parser", "legacy"}, "")
		f.String("output", "", "")
	}, map[string]string{"output": output})
	require.NoError(t, PerformDifferentialFuzzing(cmd, []string{corpus}))

	files, err := filepath.Glob(filepath.Join(output, "differential", "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var result differentialResult
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, 2, result.Inputs)
	assert.Equal(t, 1, result.Summaries["legacy"].Crashes)
	assert.Equal(t, 0, result.Summaries["parser"].Crashes)
	require.Len(t, result.Divergences, 1)
	assert.Equal(t, "crash", result.Divergences[0].TestCaseID)
	assert.Equal(t, map[string]string{"parser": "success", "legacy": "crash"}, result.Divergences[0].Statuses)

	cmd, _ = newCommand(t, func(f *pflag.FlagSet) {
		f.StringSlice("targets", nil, "")
		f.String("output", "", "")
	}, map[string]string{"targets": "parser"})
	assert.Error(t, PerformDifferentialFuzzing(cmd, []string{corpus}))
}
