/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: composite.go
Description: Composite mutator and mutator registry for the IMG! fuzzer. Chains several
strategies per mutation and builds mutator sets by name for the CLI.
*/

package strategies

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/kleascm/imgfuzz/pkg/grammar"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// CompositeMutator applies a chain of mutators to one input.
// The result is a single child of the original test case.
type CompositeMutator struct {
	mutators    []interfaces.Mutator
	chainLength int
	randomOrder bool
}

// NewCompositeMutator creates a new CompositeMutator.
// chainLength defaults to len(mutators) when out of range.
func NewCompositeMutator(mutators []interfaces.Mutator, chainLength int, randomOrder bool) *CompositeMutator {
	if chainLength <= 0 || chainLength > len(mutators) {
		chainLength = len(mutators)
	}
	return &CompositeMutator{
		mutators:    mutators,
		chainLength: chainLength,
		randomOrder: randomOrder,
	}
}

// Mutate applies the chain and returns one child of testCase
func (c *CompositeMutator) Mutate(testCase *interfaces.TestCase) (*interfaces.TestCase, error) {
	if len(c.mutators) == 0 {
		return nil, fmt.Errorf("composite mutator has no mutators")
	}

	order := make([]int, len(c.mutators))
	for i := range order {
		order[i] = i
	}
	if c.randomOrder {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	current := testCase
	chain := make([]string, 0, c.chainLength)
	for _, idx := range order[:c.chainLength] {
		next, err := c.mutators[idx].Mutate(current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.mutators[idx].Name(), err)
		}
		current = next
		chain = append(chain, c.mutators[idx].Name())
	}

	mutated := derive(testCase, current.Data, c.Name())
	mutated.Metadata["chain"] = strings.Join(chain, ",")
	return mutated, nil
}

// Name returns the name of this mutator
func (c *CompositeMutator) Name() string {
	return "CompositeMutator"
}

// Description returns a description of this mutator
func (c *CompositeMutator) Description() string {
	return "Chains multiple mutators per mutation (sequential or random order)"
}

// factory builds a mutator from the campaign mutation rate and max input
type factory func(rate float64, maxInput int) interfaces.Mutator

var registry = map[string]factory{
	"bitflip":      func(r float64, _ int) interfaces.Mutator { return NewBitFlipMutator(r) },
	"substitution": func(r float64, _ int) interfaces.Mutator { return NewByteSubstitutionMutator(r) },
	"arithmetic":   func(r float64, _ int) interfaces.Mutator { return NewArithmeticMutator(r) },
	"crossover":    func(r float64, _ int) interfaces.Mutator { return NewCrossOverMutator(r) },
	"header":       func(_ float64, max int) interfaces.Mutator { return NewHeaderAwareMutator(max) },
	"resize":       func(_ float64, max int) interfaces.Mutator { return NewResizeMutator(max) },
	"grammar":      func(_ float64, max int) interfaces.Mutator { return NewGrammarMutator(grammar.NewIMGGrammar(max)) },
}

// Names returns the registered mutator names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the named mutators. An empty list selects every registered one.
// "composite" wraps the others in a random-order chain of two.
func Build(names []string, rate float64, maxInput int) ([]interfaces.Mutator, error) {
	if rate <= 0 {
		rate = 0.01
	}
	if len(names) == 0 {
		names = Names()
	}

	var (
		mutators  []interfaces.Mutator
		composite bool
	)
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if name == "composite" {
			composite = true
			continue
		}
		f, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown mutator %q (available: %s, composite)", raw, strings.Join(Names(), ", "))
		}
		mutators = append(mutators, f(rate, maxInput))
	}

	if composite {
		base := mutators
		if len(base) == 0 {
			for _, name := range Names() {
				base = append(base, registry[name](rate, maxInput))
			}
		}
		mutators = append(mutators, NewCompositeMutator(base, 2, true))
	}
	if len(mutators) == 0 {
		return nil, fmt.Errorf("no mutators selected")
	}
	return mutators, nil
}
