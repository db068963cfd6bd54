/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analysis_test.go
Description: Tests for crash classification, panic parsing, bucketing and minimization.
*/

package analysis

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const processPanic = `panic: runtime error: slice bounds out of range [:10001] with capacity 10000

goroutine 1 [running]:
github.com/kleascm/imgfuzz/pkg/imgparse.ParseLegacy({0xc000180000, 0x2717, 0x2717})
	/src/pkg/imgparse/legacy.go:37 +0x1b4
github.com/kleascm/imgfuzz/pkg/harness.RunLegacy(...)
	/src/pkg/harness/harness.go:54
github.com/kleascm/imgfuzz/pkg/harness.(*Harness).Execute(0xc00011e000, {0xc000180000, 0x2717, 0x2717})
	/src/pkg/harness/harness.go:107 +0x2c
main.main()
	/src/cmd/harness/main.go:50 +0x1f
exit status 2
`

func TestClassify(t *testing.T) {
	e := NewCrashTriageEngine()
	tests := []struct {
		text string
		want CrashType
	}{
		{"runtime error: slice bounds out of range [:10001] with capacity 10000", CrashTypeOutOfBounds},
		{"runtime error: index out of range [5] with length 3", CrashTypeOutOfBounds},
		{"runtime error: invalid memory address or nil pointer dereference", CrashTypeNilPointer},
		{"runtime error: integer divide by zero", CrashTypeDivideByZero},
		{"imgparse: clamped copy invariant violated: copied=3", CrashTypeAssertion},
		{"signal: segmentation fault", CrashTypeSegfault},
		{"execution timed out after 1s", CrashTypeTimeout},
		{"SIGABRT: abort", CrashTypeAbort},
		{"something odd", CrashTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Classify(tt.text), tt.text)
	}
}

func TestCrashCauseNormalizesLengths(t *testing.T) {
	a := CrashCause("panic: runtime error: slice bounds out of range [:10001] with capacity 10000")
	b := CrashCause("runtime error: slice bounds out of range [:20000] with capacity 10000 [recovered]")
	assert.Equal(t, a, b)
	assert.Equal(t, "slice bounds out of range [:N] with capacity N", a)
	assert.Equal(t, "unknown", CrashCause("  "))
	assert.Equal(t, "SegFault at ADDR", CrashCause("Crash 1\nSegFault at 0x001"))
}

func TestParseGoPanic(t *testing.T) {
	p, ok := ParseGoPanic([]byte(processPanic))
	require.True(t, ok)
	assert.Equal(t, "runtime error: slice bounds out of range [:10001] with capacity 10000", p.Message)
	require.Len(t, p.Frames, 4)
	assert.Equal(t, "github.com/kleascm/imgfuzz/pkg/imgparse.ParseLegacy", p.Frames[0])
	assert.Equal(t, "main.main", p.Frames[3])

	_, ok = ParseGoPanic([]byte("exit status 1"))
	assert.False(t, ok)
}

func TestBuildCrashInfoFromRecoveredPanic(t *testing.T) {
	input := imgparse.Encode(imgparse.Header{Width: 100, Height: 100}, bytes.Repeat([]byte{1}, 10001))

	var info *interfaces.CrashInfo
	func() {
		defer func() {
			if r := recover(); r != nil {
				info = BuildCrashInfo(r, debug.Stack(), input)
			}
		}()
		imgparse.ParseLegacy(input)
	}()

	require.NotNil(t, info)
	assert.Equal(t, string(CrashTypeOutOfBounds), info.Type)
	assert.Contains(t, info.Message, "slice bounds out of range")
	require.NotEmpty(t, info.StackTrace)
	assert.Equal(t, "github.com/kleascm/imgfuzz/pkg/imgparse.ParseLegacy", info.StackTrace[0])
	assert.Len(t, info.Hash, 16)
	assert.Equal(t, input, info.Input)
}

func TestCrashHashStable(t *testing.T) {
	frames := []string{"pkg.A(0x1)", "pkg.B()"}
	h1 := CrashHash(CrashTypeOutOfBounds, frames, "x")
	h2 := CrashHash(CrashTypeOutOfBounds, []string{"pkg.A(0x2)", "pkg.B()"}, "y")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, CrashHash(CrashTypeNilPointer, frames, "x"))

	m1 := CrashHash(CrashTypeUnknown, nil, "boom at 1")
	m2 := CrashHash(CrashTypeUnknown, nil, "boom at 2")
	assert.Equal(t, m1, m2)
}

func TestTriageAndBucketize(t *testing.T) {
	e := NewCrashTriageEngine()
	reports := []*interfaces.CrashInfo{
		CrashInfoFromOutput([]byte(processPanic), "", nil),
		CrashInfoFromOutput([]byte(processPanic), "", nil),
		{Type: "", Message: "runtime error: invalid memory address or nil pointer dereference"},
		CrashInfoFromOutput([]byte(processPanic), "", nil),
	}

	var results []*TriageResult
	for _, r := range reports {
		results = append(results, e.TriageCrash(r, nil))
	}
	assert.Equal(t, SeverityCritical, results[0].Severity)
	assert.Equal(t, CrashTypeNilPointer, results[2].CrashType)
	assert.NotEmpty(t, results[2].StackHash)
	assert.Greater(t, results[0].Confidence, 0.8)

	buckets := Bucketize(append(results, nil))
	require.Len(t, buckets, 2)
	assert.Equal(t, 3, buckets[0].Count)
	assert.Equal(t, CrashTypeOutOfBounds, buckets[0].CrashType)
	assert.Len(t, buckets[0].Hashes, 1)
	assert.Equal(t, 1, buckets[1].Count)
}

func TestCrashInfoFromOutputFallback(t *testing.T) {
	info := CrashInfoFromOutput([]byte("no report"), "signal: segmentation fault", []byte{1})
	assert.Equal(t, string(CrashTypeSegfault), info.Type)
	assert.Empty(t, info.StackTrace)
	assert.NotEmpty(t, info.Hash)
}

func TestDedupeCorpus(t *testing.T) {
	cases := []*interfaces.TestCase{
		{ID: "a", Data: []byte("Red Shirt")},
		{ID: "b", Data: []byte("Blue Shirt")},
		{ID: "c", Data: []byte("Red Shirt")},
		{ID: "d", Data: []byte("Green Shirt")},
		{ID: "e", Data: []byte("Red Shirt")},
	}
	kept, dropped := DedupeCorpus(cases)
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 3)
	assert.Equal(t, []string{"a", "b", "d"}, []string{kept[0].ID, kept[1].ID, kept[2].ID})
}

func TestMinimizeCrash(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 8)
	data[21] = 'X'
	crashes := func(b []byte) bool { return bytes.IndexByte(b, 'X') >= 0 }

	res, err := MinimizeCrash(data, crashes, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("X"), res.Data)
	assert.Equal(t, 64, res.OriginalSize)
	assert.InDelta(t, 1-1.0/64, res.Reduction(), 1e-9)
	assert.Equal(t, byte('X'), data[21], "input must not be modified")
}

func TestMinimizeLegacyCrash(t *testing.T) {
	input := imgparse.Encode(imgparse.Header{Width: 100, Height: 100}, bytes.Repeat([]byte{7}, 10040))
	crashes := func(b []byte) (crashed bool) {
		defer func() {
			if recover() != nil {
				crashed = true
			}
		}()
		imgparse.ParseLegacy(b)
		return false
	}

	res, err := MinimizeCrash(input, crashes, 0)
	require.NoError(t, err)
	assert.Len(t, res.Data, imgparse.HeaderSize+10001)
	assert.True(t, bytes.HasPrefix(res.Data, []byte("IMG!\x64\x64")))
}

func TestMinimizeCrashNotReproducible(t *testing.T) {
	_, err := MinimizeCrash([]byte("abc"), func([]byte) bool { return false }, 10)
	assert.ErrorIs(t, err, ErrNotReproducible)
}
