/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: grammar.go
Description: Grammar interface and IMGGrammar implementation for grammar-based fuzzing.
IMGGrammar produces well-formed IMG! images, a valid magic followed by two dimension
bytes and a payload shaped relative to the declared size.
*/

package grammar

import (
	"math/rand"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
)

// Grammar defines the interface for grammar-based input generation and mutation.
type Grammar interface {
	// Generate returns a new valid input as a byte slice.
	Generate() ([]byte, error)
	// Mutate takes a valid input and returns a mutated, still-valid input.
	Mutate(input []byte) ([]byte, error)
	// Name returns the name of the grammar.
	Name() string
}

// Shape is the payload production relative to the declared size
type Shape int

const (
	ShapeEmpty    Shape = iota // no payload bytes
	ShapeShort                 // fewer bytes than declared
	ShapeExact                 // exactly width*height bytes
	ShapeTrailing              // more bytes than declared
)

var shapeNames = map[Shape]string{
	ShapeEmpty:    "empty",
	ShapeShort:    "short",
	ShapeExact:    "exact",
	ShapeTrailing: "trailing",
}

// String returns the production name
func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ShapeOf classifies a well-formed input. ok is false when the header is rejected.
func ShapeOf(input []byte) (shape Shape, ok bool) {
	h, err := imgparse.DecodeHeader(input)
	if err != nil {
		return ShapeEmpty, false
	}
	available := len(input) - imgparse.HeaderSize
	declared := h.DeclaredSize()
	switch {
	case available == 0:
		return ShapeEmpty, true
	case available < declared:
		return ShapeShort, true
	case available == declared:
		return ShapeExact, true
	default:
		return ShapeTrailing, true
	}
}

// IMGGrammar generates IMG! images
type IMGGrammar struct {
	maxSize int // Largest input produced, header included
}

// NewIMGGrammar creates a grammar whose inputs never exceed maxSize bytes.
// maxSize <= HeaderSize selects room for a full 255x255 image.
func NewIMGGrammar(maxSize int) *IMGGrammar {
	if maxSize <= imgparse.HeaderSize {
		maxSize = imgparse.HeaderSize + imgparse.MaxDeclaredSize + 64
	}
	return &IMGGrammar{maxSize: maxSize}
}

// Generate returns a random well-formed image
func (g *IMGGrammar) Generate() ([]byte, error) {
	h := imgparse.Header{Width: uint8(rand.Intn(256)), Height: uint8(rand.Intn(256))}
	return g.build(h, Shape(rand.Intn(len(shapeNames))), nil), nil
}

// Mutate changes one production of input. Inputs the grammar cannot
// parse are replaced by a freshly generated image.
func (g *IMGGrammar) Mutate(input []byte) ([]byte, error) {
	h, err := imgparse.DecodeHeader(input)
	if err != nil {
		return g.Generate()
	}
	shape, _ := ShapeOf(input)
	payload := input[imgparse.HeaderSize:]

	switch rand.Intn(3) {
	case 0:
		h.Width = uint8(rand.Intn(256))
	case 1:
		h.Height = uint8(rand.Intn(256))
	default:
		next := Shape(rand.Intn(len(shapeNames)))
		if next == shape {
			next = (shape + 1) % Shape(len(shapeNames))
		}
		shape = next
	}
	return g.build(h, shape, payload), nil
}

// Name returns the name of the grammar.
func (g *IMGGrammar) Name() string {
	return "IMGGrammar"
}

// build encodes h with a payload of the given shape, reusing fill bytes
// when present. Shapes that cannot be produced within maxSize fall back to
// the closest one that can.
func (g *IMGGrammar) build(h imgparse.Header, shape Shape, fill []byte) []byte {
	declared := h.DeclaredSize()
	room := g.maxSize - imgparse.HeaderSize

	var size int
	switch shape {
	case ShapeShort:
		if declared > 1 {
			size = 1 + rand.Intn(declared-1)
		}
	case ShapeExact:
		size = declared
	case ShapeTrailing:
		size = declared + 1 + rand.Intn(64)
	}
	if size > room {
		size = room
	}

	payload := make([]byte, size)
	if len(fill) == 0 {
		fill = []byte{byte(0x41 + rand.Intn(26))}
	}
	for i := 0; i < size; i += len(fill) {
		copy(payload[i:], fill)
	}
	return imgparse.Encode(h, payload)
}
