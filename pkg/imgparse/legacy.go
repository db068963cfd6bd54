/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: legacy.go
Description: Reproduction of the historical IMG! routine with its unchecked payload
copy. Only the fuzz engine and its tests use it, as a known-bad target that must
be reported as a crash.
*/

package imgparse

// ParseLegacy mirrors the old routine's return codes: -1 for a short
// buffer, 1 when the oversized copy path was taken, 0 otherwise.
//
// For a 100x100 header with more than 10000 payload bytes it copies the
// whole payload into a 10000-byte destination. Go bounds-checks the
// reslice and panics with "slice bounds out of range", which is the
// failure the harness exists to surface.
func ParseLegacy(data []byte) int {
	if len(data) < HeaderSize {
		return -1
	}
	if data[0] != 'I' || data[1] != 'M' || data[2] != 'G' || data[3] != '!' {
		return 0
	}

	width := data[4]
	height := data[5]
	if width != 100 || height != 100 {
		return 0
	}

	buffer := make([]byte, int(width)*int(height))
	available := len(data) - HeaderSize
	if available > len(buffer) {
		copy(buffer[:available], data[HeaderSize:])
		return 1
	}
	return 0
}
