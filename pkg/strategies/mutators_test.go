/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: mutators_test.go
Description: Tests for the mutation strategies and the mutator registry.
*/

package strategies

import (
	"bytes"
	"testing"

	"github.com/kleascm/imgfuzz/pkg/grammar"
	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCase() *interfaces.TestCase {
	data := imgparse.Encode(imgparse.Header{Width: 4, Height: 4}, bytes.Repeat([]byte{0x10}, 16))
	return &interfaces.TestCase{ID: "seed", Data: data, Generation: 2, Priority: 42}
}

func TestByteMutatorsChangeCopyOnly(t *testing.T) {
	mutators := []interfaces.Mutator{
		NewBitFlipMutator(0.0),
		NewByteSubstitutionMutator(0.0),
		NewArithmeticMutator(0.0),
	}
	for _, m := range mutators {
		t.Run(m.Name(), func(t *testing.T) {
			seed := seedCase()
			original := append([]byte(nil), seed.Data...)

			for i := 0; i < 20; i++ {
				mutated, err := m.Mutate(seed)
				require.NoError(t, err)
				require.NotNil(t, mutated)

				assert.Equal(t, original, seed.Data, "parent data must not change")
				assert.Len(t, mutated.Data, len(original))
				assert.Equal(t, "seed", mutated.ParentID)
				assert.Equal(t, 3, mutated.Generation)
				assert.Equal(t, 42, mutated.Priority)
				assert.NotEqual(t, seed.ID, mutated.ID)
				assert.Equal(t, m.Name(), mutated.Metadata["mutator"])
			}
			assert.NotEmpty(t, m.Description())
		})
	}
}

func TestBitFlipAlwaysFlipsOneBit(t *testing.T) {
	seed := seedCase()
	mutated, err := NewBitFlipMutator(0).Mutate(seed)
	require.NoError(t, err)

	diff := 0
	for i := range seed.Data {
		x := seed.Data[i] ^ mutated.Data[i]
		for ; x != 0; x &= x - 1 {
			diff++
		}
	}
	assert.Equal(t, 1, diff)
}

func TestMutatorsHandleEmptyInput(t *testing.T) {
	empty := &interfaces.TestCase{ID: "empty"}
	mutators, err := Build(nil, 0.05, 0)
	require.NoError(t, err)

	for _, m := range mutators {
		mutated, err := m.Mutate(empty)
		require.NoError(t, err, m.Name())
		require.NotNil(t, mutated, m.Name())
	}
}

func TestHeaderAwareMutatorUsesBoundaryDims(t *testing.T) {
	m := NewHeaderAwareMutator(2048)
	validMagic := 0
	for i := 0; i < 200; i++ {
		mutated, err := m.Mutate(seedCase())
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(mutated.Data), imgparse.HeaderSize)
		assert.LessOrEqual(t, len(mutated.Data), imgparse.HeaderSize+2048)

		assert.Contains(t, boundaryDims, mutated.Data[4])
		assert.Contains(t, boundaryDims, mutated.Data[5])
		if bytes.Equal(mutated.Data[:4], imgparse.Magic[:]) {
			validMagic++
		}
	}
	assert.Greater(t, validMagic, 150)
}

func TestFitPayload(t *testing.T) {
	assert.Equal(t, []byte("abcab"), fitPayload([]byte("abc"), 5))
	assert.Equal(t, []byte("ab"), fitPayload([]byte("abc"), 2))
	assert.Equal(t, []byte("AAA"), fitPayload(nil, 3))
	assert.Empty(t, fitPayload([]byte("abc"), 0))
}

func TestResizeMutatorRespectsMaxSize(t *testing.T) {
	m := NewResizeMutator(32)
	for i := 0; i < 100; i++ {
		mutated, err := m.Mutate(seedCase())
		require.NoError(t, err)
		assert.LessOrEqual(t, len(mutated.Data), 32)
	}
}

func TestCompositeMutator(t *testing.T) {
	_, err := NewCompositeMutator(nil, 0, false).Mutate(seedCase())
	assert.Error(t, err)

	c := NewCompositeMutator([]interfaces.Mutator{NewBitFlipMutator(0), NewResizeMutator(64)}, 0, false)
	mutated, err := c.Mutate(seedCase())
	require.NoError(t, err)
	assert.Equal(t, "seed", mutated.ParentID)
	assert.Equal(t, 3, mutated.Generation)
	assert.Equal(t, "BitFlipMutator,ResizeMutator", mutated.Metadata["chain"])
}

func TestBuildRegistry(t *testing.T) {
	assert.Equal(t, []string{"arithmetic", "bitflip", "crossover", "grammar", "header", "resize", "substitution"}, Names())

	all, err := Build(nil, 0.01, 1024)
	require.NoError(t, err)
	assert.Len(t, all, len(Names()))

	some, err := Build([]string{"BitFlip", " header ", "composite"}, 0.01, 1024)
	require.NoError(t, err)
	require.Len(t, some, 3)
	assert.Equal(t, "CompositeMutator", some[2].Name())

	_, err = Build([]string{"json"}, 0.01, 1024)
	assert.Error(t, err)
	_, err = Build([]string{" "}, 0.01, 1024)
	assert.Error(t, err)
}

func TestGrammarMutatorKeepsImagesWellFormed(t *testing.T) {
	m := NewGrammarMutator(grammar.NewIMGGrammar(512))
	tc := seedCase()
	for i := 0; i < 200; i++ {
		mutated, err := m.Mutate(tc)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(mutated.Data), 512)
		assert.True(t, imgparse.Parse(mutated.Data).Accepted)
		assert.Equal(t, "IMGGrammar", mutated.Metadata["grammar"])
		tc = mutated
	}

	fresh, err := m.Mutate(&interfaces.TestCase{ID: "junk", Data: []byte("XYZ?")})
	require.NoError(t, err)
	assert.True(t, imgparse.Parse(fresh.Data).Accepted)
}
