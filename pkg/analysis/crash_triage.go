/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: crash_triage.go
Description: Crash triage for the IMG! fuzzer. Classifies crash output by pattern,
assigns a severity, derives a stable stack hash for deduplication and groups crashes
into buckets by cause so repeated hits of the same bug are counted once.
*/

package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// CrashSeverity represents the severity level of a crash
type CrashSeverity int

const (
	SeverityLow CrashSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of crash severity
func (s CrashSeverity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// CrashType represents the type of crash detected
type CrashType string

const (
	CrashTypeOutOfBounds  CrashType = "OUT_OF_BOUNDS"
	CrashTypeNilPointer   CrashType = "NIL_POINTER"
	CrashTypeDivideByZero CrashType = "DIVIDE_BY_ZERO"
	CrashTypeAssertion    CrashType = "ASSERTION"
	CrashTypeSegfault     CrashType = "SEGFAULT"
	CrashTypeAbort        CrashType = "ABORT"
	CrashTypeTimeout      CrashType = "TIMEOUT"
	CrashTypeUnknown      CrashType = "UNKNOWN"
)

// crashPattern pairs a type with its detection regex; order matters
type crashPattern struct {
	crashType CrashType
	pattern   *regexp.Regexp
}

// TriageResult contains the triage analysis of a crash
type TriageResult struct {
	CrashInfo    *interfaces.CrashInfo
	Severity     CrashSeverity
	CrashType    CrashType
	Cause        string
	Confidence   float64 // 0.0 to 1.0
	Keywords     []string
	StackHash    string
	AnalysisTime time.Duration
}

// CrashTriageEngine classifies and groups crashes
type CrashTriageEngine struct {
	patterns        []crashPattern
	severityWeights map[CrashType]CrashSeverity
}

// NewCrashTriageEngine creates a new crash triage engine
func NewCrashTriageEngine() *CrashTriageEngine {
	return &CrashTriageEngine{
		patterns: []crashPattern{
			{CrashTypeOutOfBounds, regexp.MustCompile(`(?i)(index out of range|slice bounds out of range|out of bounds|buffer overflow)`)},
			{CrashTypeNilPointer, regexp.MustCompile(`(?i)(nil pointer dereference|null pointer|nil map)`)},
			{CrashTypeDivideByZero, regexp.MustCompile(`(?i)(integer divide by zero|division by zero|sigfpe)`)},
			{CrashTypeAssertion, regexp.MustCompile(`(?i)(invariant violated|assertion failed|assert.*failed)`)},
			{CrashTypeSegfault, regexp.MustCompile(`(?i)(segmentation fault|sigsegv|access violation)`)},
			{CrashTypeTimeout, regexp.MustCompile(`(?i)(timed out|timeout|deadline exceeded)`)},
			{CrashTypeAbort, regexp.MustCompile(`(?i)(sigabrt|aborted|fatal error)`)},
		},
		severityWeights: map[CrashType]CrashSeverity{
			CrashTypeOutOfBounds:  SeverityCritical,
			CrashTypeSegfault:     SeverityCritical,
			CrashTypeNilPointer:   SeverityHigh,
			CrashTypeAssertion:    SeverityMedium,
			CrashTypeDivideByZero: SeverityMedium,
			CrashTypeAbort:        SeverityMedium,
			CrashTypeTimeout:      SeverityLow,
			CrashTypeUnknown:      SeverityLow,
		},
	}
}

// Classify returns the first crash type whose pattern matches text
func (e *CrashTriageEngine) Classify(text string) CrashType {
	for _, p := range e.patterns {
		if p.pattern.MatchString(text) {
			return p.crashType
		}
	}
	return CrashTypeUnknown
}

// TriageCrash analyzes a crash. result may be nil.
func (e *CrashTriageEngine) TriageCrash(crash *interfaces.CrashInfo, result *interfaces.ExecutionResult) *TriageResult {
	startTime := time.Now()

	text := crash.Type + " " + crash.Message
	if result != nil {
		text += " " + string(result.Error)
	}

	triage := &TriageResult{
		CrashInfo: crash,
		CrashType: CrashType(crash.Type),
		Cause:     CrashCause(crash.Message),
		StackHash: crash.Hash,
	}
	if _, known := e.severityWeights[triage.CrashType]; !known || triage.CrashType == CrashTypeUnknown {
		triage.CrashType = e.Classify(text)
	}
	if triage.StackHash == "" {
		triage.StackHash = CrashHash(triage.CrashType, crash.StackTrace, crash.Message)
	}

	triage.Severity = e.severityWeights[triage.CrashType]
	triage.Keywords = extractKeywords(text)
	triage.Confidence = calculateConfidence(triage)
	triage.AnalysisTime = time.Since(startTime)
	return triage
}

var crashKeywords = []string{"panic", "runtime error", "slice", "index", "capacity", "nil", "signal", "overflow"}

// extractKeywords extracts relevant keywords from the crash text
func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	keywords := make([]string, 0)
	for _, keyword := range crashKeywords {
		if strings.Contains(lower, keyword) {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}

// calculateConfidence determines the confidence level of the analysis
func calculateConfidence(triage *TriageResult) float64 {
	confidence := 0.5
	if triage.CrashType != CrashTypeUnknown {
		confidence += 0.3
	}
	if triage.CrashInfo != nil && len(triage.CrashInfo.StackTrace) > 0 {
		confidence += 0.1
	}
	if len(triage.Keywords) > 2 {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

var (
	digitsRe   = regexp.MustCompile(`\d+`)
	hexAddrRe  = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	spaceRe    = regexp.MustCompile(`\s+`)
	argsRe     = regexp.MustCompile(`\([^()]*\)$`)
	causeStrip = []string{"panic:", "runtime error:", "[recovered]"}
)

// CrashCause reduces a crash message to a cause label. The last line of the
// message is used, runtime prefixes are dropped and numbers are replaced so
// the same bug hit with different lengths lands in the same bucket.
func CrashCause(message string) string {
	lines := strings.Split(strings.TrimSpace(message), "\n")
	cause := strings.TrimSpace(lines[len(lines)-1])
	for _, prefix := range causeStrip {
		cause = strings.ReplaceAll(cause, prefix, "")
	}
	cause = hexAddrRe.ReplaceAllString(cause, "ADDR")
	cause = digitsRe.ReplaceAllString(cause, "N")
	cause = spaceRe.ReplaceAllString(strings.TrimSpace(cause), " ")
	if cause == "" {
		return "unknown"
	}
	return cause
}

// NormalizeFrame strips arguments and addresses from a stack frame
func NormalizeFrame(frame string) string {
	frame = strings.TrimSpace(frame)
	frame = argsRe.ReplaceAllString(frame, "")
	return hexAddrRe.ReplaceAllString(frame, "")
}

// CrashHash creates a stable hash from the crash type and the top frames.
// The message cause is used when no frames are available.
func CrashHash(crashType CrashType, frames []string, message string) string {
	h := sha256.New()
	h.Write([]byte(crashType))
	if len(frames) == 0 {
		h.Write([]byte("\n" + CrashCause(message)))
	}
	for i := 0; i < len(frames) && i < 5; i++ {
		h.Write([]byte("\n" + NormalizeFrame(frames[i])))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Bucket groups crashes that share a cause
type Bucket struct {
	Cause     string        `json:"cause"`
	CrashType CrashType     `json:"crash_type"`
	Severity  CrashSeverity `json:"severity"`
	Count     int           `json:"count"`
	Hashes    []string      `json:"hashes"`
}

// Bucketize groups triage results by cause. Buckets are ordered by count,
// then by cause.
func Bucketize(results []*TriageResult) []Bucket {
	index := make(map[string]*Bucket)
	var order []string

	for _, r := range results {
		if r == nil {
			continue
		}
		b, ok := index[r.Cause]
		if !ok {
			b = &Bucket{Cause: r.Cause, CrashType: r.CrashType, Severity: r.Severity}
			index[r.Cause] = b
			order = append(order, r.Cause)
		}
		b.Count++
		if !containsString(b.Hashes, r.StackHash) {
			b.Hashes = append(b.Hashes, r.StackHash)
		}
	}

	buckets := make([]Bucket, 0, len(order))
	for _, cause := range order {
		buckets = append(buckets, *index[cause])
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Cause < buckets[j].Cause
	})
	return buckets
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
