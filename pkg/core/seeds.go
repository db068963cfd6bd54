/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: seeds.go
Description: Built-in seed corpus for the IMG! format and helpers to load or write
seed directories.
*/

package core

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/imgfuzz/pkg/imgparse"
	"github.com/kleascm/imgfuzz/pkg/interfaces"
)

// Seed is a named built-in input
type Seed struct {
	Name string
	Data []byte
}

// DefaultSeeds returns a small corpus touching each parser path
func DefaultSeeds() []Seed {
	hdr := func(w, h uint8) imgparse.Header { return imgparse.Header{Width: w, Height: h} }
	return []Seed{
		{Name: "empty", Data: []byte{}},
		{Name: "magic_only", Data: []byte("IMG!")},
		{Name: "bad_magic", Data: []byte("XYZ?\x02\x02abcd")},
		{Name: "zero_dims", Data: imgparse.Encode(hdr(0, 0), nil)},
		{Name: "tiny_exact", Data: imgparse.Encode(hdr(2, 2), []byte{1, 2, 3, 4})},
		{Name: "tiny_trailing", Data: imgparse.Encode(hdr(2, 2), []byte{1, 2, 3, 4, 5, 6, 7, 8})},
		{Name: "square_short", Data: imgparse.Encode(hdr(100, 100), bytes.Repeat([]byte{0xAB}, 500))},
		{Name: "square_exact", Data: imgparse.Encode(hdr(100, 100), bytes.Repeat([]byte{0xCD}, 10000))},
	}
}

// SeedTestCases converts seeds to generation-0 test cases
func SeedTestCases(seeds []Seed) []*interfaces.TestCase {
	cases := make([]*interfaces.TestCase, 0, len(seeds))
	for _, s := range seeds {
		cases = append(cases, &interfaces.TestCase{
			ID:        uuid.New().String(),
			Data:      s.Data,
			CreatedAt: time.Now(),
			Priority:  150,
			Metadata:  map[string]interface{}{"name": s.Name},
		})
	}
	return cases
}

// LoadTestCases reads every regular file in dir as a test case.
// Files are returned in name order; the file name becomes the ID.
func LoadTestCases(dir string) ([]*interfaces.TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var cases []*interfaces.TestCase
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cases = append(cases, &interfaces.TestCase{
			ID:        entry.Name(),
			Data:      data,
			CreatedAt: time.Now(),
			Priority:  150,
			Metadata:  map[string]interface{}{"name": entry.Name(), "file": path},
		})
	}
	return cases, nil
}

// WriteSeeds writes seeds into dir as seed_<name> files
func WriteSeeds(dir string, seeds []Seed) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create seed directory: %w", err)
	}
	paths := make([]string, 0, len(seeds))
	for _, s := range seeds {
		path := filepath.Join(dir, "seed_"+s.Name)
		if err := os.WriteFile(path, s.Data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write seed %s: %w", s.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
