/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: mutators.go
Description: Byte-level mutation strategies for the IMG! fuzzer. Implements bit flipping,
byte substitution, small-integer arithmetic and splice mutations. Every mutator works on
a copy of the input so corpus entries are never modified.
*/

package strategies

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// derive builds the child test case shared by every mutator
func derive(parent *interfaces.TestCase, data []byte, mutator string) *interfaces.TestCase {
	return &interfaces.TestCase{
		ID:         uuid.New().String(),
		Data:       data,
		ParentID:   parent.ID,
		Generation: parent.Generation + 1,
		CreatedAt:  time.Now(),
		Priority:   parent.Priority,
		Metadata:   map[string]interface{}{"mutator": mutator},
	}
}

func cloneData(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// BitFlipMutator flips individual bits.
// At least one bit is flipped for non-empty input.
type BitFlipMutator struct {
	mutationRate float64 // Probability of mutation per bit
}

// NewBitFlipMutator creates a new bit flip mutator
func NewBitFlipMutator(mutationRate float64) *BitFlipMutator {
	return &BitFlipMutator{mutationRate: mutationRate}
}

// Mutate creates a new test case by flipping bits in the original
func (m *BitFlipMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	data := cloneData(testCase.Data)

	flipped := false
	for i := 0; i < len(data)*8; i++ {
		if rand.Float64() < m.mutationRate {
			data[i/8] ^= 1 << (i % 8)
			flipped = true
		}
	}
	if !flipped && len(data) > 0 {
		bit := rand.Intn(len(data) * 8)
		data[bit/8] ^= 1 << (bit % 8)
	}

	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["mutation_rate"] = m.mutationRate
	return mutated, nil
}

// Name returns the name of this mutator
func (m *BitFlipMutator) Name() string {
	return "BitFlipMutator"
}

// Description returns a description of this mutator
func (m *BitFlipMutator) Description() string {
	return "Flips individual bits in test case data for fine-grained mutations"
}

// ByteSubstitutionMutator replaces bytes with random or boundary values
type ByteSubstitutionMutator struct {
	mutationRate float64 // Probability of mutation per byte
}

// NewByteSubstitutionMutator creates a new byte substitution mutator
func NewByteSubstitutionMutator(mutationRate float64) *ByteSubstitutionMutator {
	return &ByteSubstitutionMutator{mutationRate: mutationRate}
}

var interestingBytes = []byte{0x00, 0x01, 0x7F, 0x80, 0xFF, 100}

// Mutate creates a new test case by substituting bytes in the original
func (m *ByteSubstitutionMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	data := cloneData(testCase.Data)

	substitute := func(i int) {
		if rand.Intn(2) == 0 {
			data[i] = interestingBytes[rand.Intn(len(interestingBytes))]
		} else {
			data[i] = byte(rand.Intn(256))
		}
	}

	changed := false
	for i := range data {
		if rand.Float64() < m.mutationRate {
			substitute(i)
			changed = true
		}
	}
	if !changed && len(data) > 0 {
		substitute(rand.Intn(len(data)))
	}

	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["mutation_rate"] = m.mutationRate
	return mutated, nil
}

// Name returns the name of this mutator
func (m *ByteSubstitutionMutator) Name() string {
	return "ByteSubstitutionMutator"
}

// Description returns a description of this mutator
func (m *ByteSubstitutionMutator) Description() string {
	return "Substitutes bytes with random or boundary values"
}

// ArithmeticMutator adds or subtracts small deltas from single bytes.
// Width and height are one byte each, so 8-bit arithmetic hits them directly.
type ArithmeticMutator struct {
	mutationRate float64
	maxDelta     int
}

// NewArithmeticMutator creates a new arithmetic mutator
func NewArithmeticMutator(mutationRate float64) *ArithmeticMutator {
	return &ArithmeticMutator{mutationRate: mutationRate, maxDelta: 35}
}

// Mutate creates a new test case by performing wrapping byte arithmetic
func (m *ArithmeticMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	data := cloneData(testCase.Data)

	apply := func(i int) {
		delta := byte(rand.Intn(m.maxDelta) + 1)
		if rand.Intn(2) == 0 {
			data[i] += delta
		} else {
			data[i] -= delta
		}
	}

	changed := false
	for i := range data {
		if rand.Float64() < m.mutationRate {
			apply(i)
			changed = true
		}
	}
	if !changed && len(data) > 0 {
		apply(rand.Intn(len(data)))
	}

	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["mutation_rate"] = m.mutationRate
	return mutated, nil
}

// Name returns the name of this mutator
func (m *ArithmeticMutator) Name() string {
	return "ArithmeticMutator"
}

// Description returns a description of this mutator
func (m *ArithmeticMutator) Description() string {
	return "Adds or subtracts small deltas from individual bytes"
}

// CrossOverMutator rotates the input around a random split point
type CrossOverMutator struct {
	mutationRate float64 // Probability of crossover operation
}

// NewCrossOverMutator creates a new crossover mutator
func NewCrossOverMutator(mutationRate float64) *CrossOverMutator {
	return &CrossOverMutator{mutationRate: mutationRate}
}

// Mutate swaps the halves of the input around a random split point
func (m *CrossOverMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	data := cloneData(testCase.Data)

	if len(data) > 1 && rand.Float64() < m.mutationRate {
		split := rand.Intn(len(data)-1) + 1
		rotated := make([]byte, 0, len(data))
		rotated = append(rotated, data[split:]...)
		rotated = append(rotated, data[:split]...)
		data = rotated
	}

	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["mutation_rate"] = m.mutationRate
	return mutated, nil
}

// Name returns the name of this mutator
func (m *CrossOverMutator) Name() string {
	return "CrossOverMutator"
}

// Description returns a description of this mutator
func (m *CrossOverMutator) Description() string {
	return "Recombines the input around a random split point"
}
