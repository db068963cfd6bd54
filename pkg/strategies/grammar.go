/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: grammar.go
Description: Grammar-based mutator. Delegates to a grammar.Grammar so mutated inputs
stay structurally valid images.
*/

package strategies

import (
	"fmt"

	"github.com/kleascm/imgfuzz/pkg/grammar"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// GrammarMutator mutates test cases through a grammar
type GrammarMutator struct {
	grammar grammar.Grammar
}

// NewGrammarMutator creates a mutator backed by g
func NewGrammarMutator(g grammar.Grammar) *GrammarMutator {
	return &GrammarMutator{grammar: g}
}

// Mutate returns a grammar-mutated copy of testCase
func (m *GrammarMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	data, err := m.grammar.Mutate(testCase.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.grammar.Name(), err)
	}
	mutated := derive(testCase, data, m.Name())
	mutated.Metadata["grammar"] = m.grammar.Name()
	return mutated, nil
}

// Name returns the mutator name
func (m *GrammarMutator) Name() string {
	return "GrammarMutator"
}

// Description returns a description of the mutator
func (m *GrammarMutator) Description() string {
	return "Rewrites one production (width, height or payload shape) of a well-formed image"
}
