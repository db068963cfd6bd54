/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: grammar_test.go
Description: Tests for the IMG! grammar.
*/

package grammar

import (
	"testing"

	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeOf(t *testing.T) {
	h := imgparse.Header{Width: 2, Height: 3}
	tests := []struct {
		name    string
		payload int
		shape   Shape
	}{
		{"empty", 0, ShapeEmpty},
		{"short", 5, ShapeShort},
		{"exact", 6, ShapeExact},
		{"trailing", 7, ShapeTrailing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, ok := ShapeOf(imgparse.Encode(h, make([]byte, tt.payload)))
			require.True(t, ok)
			assert.Equal(t, tt.shape, shape)
			assert.Equal(t, tt.name, shape.String())
		})
	}

	_, ok := ShapeOf([]byte("XYZ?\x01\x01"))
	assert.False(t, ok)
}

func TestGenerateProducesAcceptedImages(t *testing.T) {
	g := NewIMGGrammar(300)
	seen := map[Shape]bool{}
	for i := 0; i < 500; i++ {
		data, err := g.Generate()
		require.NoError(t, err)
		require.LessOrEqual(t, len(data), 300)

		out := imgparse.Parse(data)
		require.True(t, out.Accepted)
		shape, _ := ShapeOf(data)
		seen[shape] = true
	}
	assert.True(t, seen[ShapeEmpty])
	assert.True(t, seen[ShapeShort] || seen[ShapeExact] || seen[ShapeTrailing])
}

func TestMutateChangesOneProduction(t *testing.T) {
	g := NewIMGGrammar(0)
	input := imgparse.Encode(imgparse.Header{Width: 10, Height: 10}, make([]byte, 100))
	for i := 0; i < 100; i++ {
		out, err := g.Mutate(input)
		require.NoError(t, err)

		before, _ := imgparse.DecodeHeader(input)
		after, err := imgparse.DecodeHeader(out)
		require.NoError(t, err)
		shape, _ := ShapeOf(out)
		changed := 0
		if before.Width != after.Width {
			changed++
		}
		if before.Height != after.Height {
			changed++
		}
		if shape != ShapeExact {
			changed++
		}
		assert.LessOrEqual(t, changed, 2)
	}
}

func TestMutateReplacesInvalidInput(t *testing.T) {
	out, err := NewIMGGrammar(64).Mutate([]byte("nope"))
	require.NoError(t, err)
	assert.True(t, imgparse.Parse(out).Accepted)
	assert.Equal(t, "IMGGrammar", NewIMGGrammar(64).Name())
}
