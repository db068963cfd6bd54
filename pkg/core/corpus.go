/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: corpus.go
Description: Corpus management for the IMG! fuzzer. Stores test cases keyed by ID,
rejects duplicate contents by SHA-256, and trims itself to a maximum size by
dropping the least valuable entries. Safe for concurrent use.
*/

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"sort"
	"sync"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// DefaultMaxCorpusSize is used when no explicit limit is configured
const DefaultMaxCorpusSize = 10000

// Corpus manages the collection of test cases
// Stored test cases are never mutated; execution history lives in info.
type Corpus struct {
	testCases map[string]*interfaces.TestCase // ID -> test case
	info      map[string]*entryInfo           // ID -> execution history
	hashes    map[string]string               // content hash -> ID
	maxSize   int
	mu        sync.RWMutex
}

type entryInfo struct {
	executions int64
	crashed    bool
	newPath    bool
}

// NewCorpus creates an empty corpus
func NewCorpus() *Corpus {
	return &Corpus{
		testCases: make(map[string]*interfaces.TestCase),
		info:      make(map[string]*entryInfo),
		hashes:    make(map[string]string),
		maxSize:   DefaultMaxCorpusSize,
	}
}

// ContentHash returns the hex SHA-256 of data
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Add stores a test case. Returns false when the ID or the exact contents
// are already present.
func (c *Corpus) Add(testCase *interfaces.TestCase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.testCases[testCase.ID]; exists {
		return false
	}
	hash := ContentHash(testCase.Data)
	if _, exists := c.hashes[hash]; exists {
		return false
	}

	if len(c.testCases) >= c.maxSize {
		c.cleanupLocked(c.maxSize - 1)
	}

	c.testCases[testCase.ID] = testCase
	c.info[testCase.ID] = &entryInfo{}
	c.hashes[hash] = testCase.ID
	return true
}

// Get retrieves a test case by ID
// Returns nil if test case doesn't exist
func (c *Corpus) Get(id string) *interfaces.TestCase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.testCases[id]
}

// Contains reports whether data is already in the corpus
func (c *Corpus) Contains(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[ContentHash(data)]
	return ok
}

// GetRandom returns up to count test cases in random order
func (c *Corpus) GetRandom(count int) []*interfaces.TestCase {
	all := c.GetAll()
	if count <= 0 || len(all) == 0 {
		return nil
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if count > len(all) {
		count = len(all)
	}
	return all[:count]
}

// GetByPriority returns up to count test cases, highest priority first
func (c *Corpus) GetByPriority(count int) []*interfaces.TestCase {
	all := c.GetAll()
	if count <= 0 || len(all) == 0 {
		return nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })
	if count > len(all) {
		count = len(all)
	}
	return all[:count]
}

// RecordExecution updates the history of a test case after it ran.
// Crashing and path-discovering inputs are kept by cleanup.
func (c *Corpus) RecordExecution(id string, crashed, newPath bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.info[id]
	if !ok {
		return
	}
	info.executions++
	info.crashed = info.crashed || crashed
	info.newPath = info.newPath || newPath
}

// Executions returns how many times the test case ran
func (c *Corpus) Executions(id string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.info[id]; ok {
		return info.executions
	}
	return 0
}

// Size returns the current number of test cases
func (c *Corpus) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.testCases)
}

// SetMaxSize sets the size limit and trims immediately if needed
func (c *Corpus) SetMaxSize(maxSize int) {
	if maxSize <= 0 {
		maxSize = DefaultMaxCorpusSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxSize = maxSize
	if len(c.testCases) > maxSize {
		c.cleanupLocked(maxSize)
	}
}

// Cleanup trims the corpus to targetSize, returning the number removed
func (c *Corpus) Cleanup(targetSize int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked(targetSize)
}

// cleanupLocked removes the lowest scoring entries until targetSize remain
func (c *Corpus) cleanupLocked(targetSize int) int {
	if targetSize < 0 {
		targetSize = 0
	}
	excess := len(c.testCases) - targetSize
	if excess <= 0 {
		return 0
	}

	ranked := make([]*interfaces.TestCase, 0, len(c.testCases))
	for _, tc := range c.testCases {
		ranked = append(ranked, tc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return removalScore(ranked[i], c.info[ranked[i].ID]) < removalScore(ranked[j], c.info[ranked[j].ID])
	})

	for _, tc := range ranked[:excess] {
		delete(c.testCases, tc.ID)
		delete(c.info, tc.ID)
		delete(c.hashes, ContentHash(tc.Data))
	}
	return excess
}

// removalScore ranks test cases for eviction; lower is evicted first
func removalScore(tc *interfaces.TestCase, info *entryInfo) int {
	score := tc.Priority
	if info != nil {
		score -= int(info.executions) * 5
		if info.crashed {
			score += 1000
		}
		if info.newPath {
			score += 200
		}
	}

	if tc.Generation == 0 {
		score += 500
	}
	return score
}

// GetAll returns every test case in the corpus
func (c *Corpus) GetAll() []*interfaces.TestCase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]*interfaces.TestCase, 0, len(c.testCases))
	for _, tc := range c.testCases {
		all = append(all, tc)
	}
	return all
}

// GetStats returns corpus statistics
func (c *Corpus) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	generations := make(map[int]int)
	var totalExecutions int64
	totalBytes := 0
	for id, tc := range c.testCases {
		generations[tc.Generation]++
		totalExecutions += c.info[id].executions
		totalBytes += len(tc.Data)
	}

	stats := map[string]interface{}{
		"size":                    len(c.testCases),
		"max_size":                c.maxSize,
		"generation_distribution": generations,
		"total_executions":        totalExecutions,
		"total_bytes":             totalBytes,
	}
	if n := len(c.testCases); n > 0 {
		stats["avg_executions"] = float64(totalExecutions) / float64(n)
		stats["avg_size"] = float64(totalBytes) / float64(n)
	}
	return stats
}
