/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: header_aware.go
Description: IMG!-aware mutators. HeaderAwareMutator keeps a valid magic and pushes the
dimension bytes to boundary values while sizing the payload around the declared size.
ResizeMutator grows or truncates the payload.
*/

package strategies

import (
	"bytes"
	"math/rand"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

var boundaryDims = []uint8{0, 1, 2, 99, 100, 101, 127, 128, 254, 255}

// HeaderAwareMutator rewrites the IMG! header with boundary dimensions
type HeaderAwareMutator struct {
	keepMagic   float64 // Probability of writing a valid magic
	maxDeclared int     // Largest payload the mutator will synthesize
}

// NewHeaderAwareMutator creates a header-aware mutator.
// maxPayload bounds the payload it builds; <= 0 allows a full 255x255 image plus slack.
func NewHeaderAwareMutator(maxPayload int) *HeaderAwareMutator {
	if maxPayload <= 0 {
		maxPayload = imgparse.MaxDeclaredSize + 1024
	}
	return &HeaderAwareMutator{keepMagic: 0.95, maxDeclared: maxPayload}
}

// Mutate rewrites the header and resizes the payload relative to the declared size
func (m *HeaderAwareMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	var payload []byte
	if len(testCase.Data) > imgparse.HeaderSize {
		payload = testCase.Data[imgparse.HeaderSize:]
	}

	h := imgparse.Header{
		Width:  boundaryDims[rand.Intn(len(boundaryDims))],
		Height: boundaryDims[rand.Intn(len(boundaryDims))],
	}
	declared := h.DeclaredSize()

	var size int
	switch rand.Intn(5) {
	case 0:
		size = declared
	case 1:
		size = declared - 1
	case 2:
		size = declared + 1 + rand.Intn(64)
	case 3:
		size = rand.Intn(declared + 1)
	default:
		size = len(payload)
	}
	if size < 0 {
		size = 0
	}
	if size > m.maxDeclared {
		size = m.maxDeclared
	}

	data := imgparse.Encode(h, fitPayload(payload, size))
	if rand.Float64() >= m.keepMagic {
		data[rand.Intn(len(imgparse.Magic))] ^= byte(rand.Intn(255) + 1)
	}

	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["width"] = int(h.Width)
	mutated.Metadata["height"] = int(h.Height)
	return mutated, nil
}

// fitPayload repeats or truncates payload to exactly size bytes
func fitPayload(payload []byte, size int) []byte {
	if size <= len(payload) {
		return cloneData(payload[:size])
	}
	if len(payload) == 0 {
		return bytes.Repeat([]byte{0x41}, size)
	}
	out := bytes.Repeat(payload, size/len(payload)+1)
	return out[:size]
}

// Name returns the name of this mutator
func (m *HeaderAwareMutator) Name() string {
	return "HeaderAwareMutator"
}

// Description returns a description of this mutator
func (m *HeaderAwareMutator) Description() string {
	return "Writes boundary width/height values and sizes the payload around width*height"
}

// ResizeMutator grows or truncates the input
type ResizeMutator struct {
	maxSize int
}

// NewResizeMutator creates a resize mutator; inputs never exceed maxSize bytes
func NewResizeMutator(maxSize int) *ResizeMutator {
	if maxSize <= 0 {
		maxSize = imgparse.HeaderSize + imgparse.MaxDeclaredSize + 1024
	}
	return &ResizeMutator{maxSize: maxSize}
}

// Mutate appends random bytes, duplicates a chunk or truncates the input
func (m *ResizeMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	data := cloneData(testCase.Data)

	switch {
	case len(data) == 0 || rand.Intn(3) == 0:
		grow := make([]byte, rand.Intn(256)+1)
		rand.Read(grow)
		data = append(data, grow...)
	case rand.Intn(2) == 0:
		start := rand.Intn(len(data))
		chunk := data[start:]
		data = append(data, chunk...)
	default:
		data = data[:rand.Intn(len(data))]
	}

	if len(data) > m.maxSize {
		data = data[:m.maxSize]
	}

	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["size"] = len(data)
	return mutated, nil
}

// Name returns the name of this mutator
func (m *ResizeMutator) Name() string {
	return "ResizeMutator"
}

// Description returns a description of this mutator
func (m *ResizeMutator) Description() string {
	return "Grows or truncates the input to move the payload across the declared size"
}
