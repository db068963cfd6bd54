/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: minimizer.go
Description: Corpus and crash minimization. DedupeCorpus drops inputs whose contents
were already seen; MinimizeCrash shrinks a crashing input by delta debugging while a
caller-supplied predicate still reports the crash.
*/

package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// ErrNotReproducible is returned when the original input does not crash
var ErrNotReproducible = errors.New("input does not reproduce the crash")

// DefaultMaxAttempts bounds the number of predicate calls in MinimizeCrash
const DefaultMaxAttempts = 5000

// Fingerprint returns the hex SHA-256 of data
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DedupeCorpus keeps the first test case for each distinct content.
// Order of the kept cases follows the input.
func DedupeCorpus(cases []*interfaces.TestCase) (kept []*interfaces.TestCase, dropped int) {
	seen := make(map[string]struct{}, len(cases))
	for _, tc := range cases {
		fp := Fingerprint(tc.Data)
		if _, dup := seen[fp]; dup {
			dropped++
			continue
		}
		seen[fp] = struct{}{}
		kept = append(kept, tc)
	}
	return kept, dropped
}

// MinimizeResult describes a crash minimization run
type MinimizeResult struct {
	Data         []byte
	OriginalSize int
	Attempts     int
}

// Reduction returns the fraction of bytes removed
func (r MinimizeResult) Reduction() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return 1 - float64(len(r.Data))/float64(r.OriginalSize)
}

// MinimizeCrash removes bytes while crashes keeps returning true. The tail is
// trimmed first with shrinking steps, then chunks are removed anywhere, halving
// the chunk size whenever none can go, down to single bytes.
// maxAttempts <= 0 uses DefaultMaxAttempts.
func MinimizeCrash(data []byte, crashes func([]byte) bool, maxAttempts int) (MinimizeResult, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	result := MinimizeResult{OriginalSize: len(data), Attempts: 1}

	current := append([]byte(nil), data...)
	if !crashes(current) {
		result.Data = current
		return result, ErrNotReproducible
	}

	current = trimTail(current, crashes, &result.Attempts, maxAttempts)

	n := 2
	for len(current) >= 1 && result.Attempts < maxAttempts {
		if n > len(current) {
			n = len(current)
		}
		chunk := (len(current) + n - 1) / n

		reduced := false
		for start := 0; start < len(current) && result.Attempts < maxAttempts; start += chunk {
			end := start + chunk
			if end > len(current) {
				end = len(current)
			}
			candidate := make([]byte, 0, len(current)-(end-start))
			candidate = append(candidate, current[:start]...)
			candidate = append(candidate, current[end:]...)

			result.Attempts++
			if crashes(candidate) {
				current = candidate
				if n > 2 {
					n--
				}
				reduced = true
				break
			}
		}

		if !reduced {
			if chunk == 1 {
				break
			}
			n *= 2
		}
	}

	result.Data = current
	return result, nil
}

// trimTail cuts step bytes off the end while the crash persists,
// halving step on each miss
func trimTail(data []byte, crashes func([]byte) bool, attempts *int, maxAttempts int) []byte {
	for step := len(data) / 2; step >= 1 && *attempts < maxAttempts; {
		if step > len(data) {
			step = len(data)
		}
		*attempts++
		if crashes(data[:len(data)-step]) {
			data = data[:len(data)-step]
			continue
		}
		step /= 2
	}
	return data
}
