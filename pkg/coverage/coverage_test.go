/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coverage_test.go
Description: Tests for the path coverage set.
*/

package coverage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathSetRecord(t *testing.T) {
	s := NewPathSet()
	assert.True(t, s.LastNew().IsZero())

	assert.True(t, s.Record("rejected:TooShort", "a"))
	assert.False(t, s.Record("rejected:TooShort", "b"))
	assert.True(t, s.Record("accepted:exact:100x100", "c"))
	assert.False(t, s.Record("", "d"))

	assert.Equal(t, 2, s.Len())
	assert.False(t, s.LastNew().IsZero())
	assert.Equal(t, map[string]int{"rejected:TooShort": 2, "accepted:exact:100x100": 1}, s.Counts())

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].FirstID)
	assert.Equal(t, 2, snap[0].Hits)
}

func TestPathSetConcurrentRecord(t *testing.T) {
	s := NewPathSet()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		new int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if s.Record(fmt.Sprintf("path-%d", j%10), fmt.Sprintf("w%d", worker)) {
					mu.Lock()
					new++
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, new)
	total := 0
	for _, hits := range s.Counts() {
		total += hits
	}
	assert.Equal(t, 800, total)
}
