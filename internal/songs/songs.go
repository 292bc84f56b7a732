// Package songs finds song folders on disk and splits them into training
// partitions.
package songs

import (
	"fmt"
	"os"
	"path/filepath"

	"beatset/internal/beatmap"
)

// Discover returns every directory under root (root included) that holds an
// info.dat or info.json. Children are listed before their parent and siblings
// in lexical order.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover songs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover songs: %s is not a directory", root)
	}
	var out []string
	if err := walk(filepath.Clean(root), &out); err != nil {
		return nil, fmt.Errorf("discover songs: %w", err)
	}
	return out, nil
}

func walk(dir string, out *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	indicator := false
	for _, entry := range entries {
		if entry.IsDir() {
			if err := walk(filepath.Join(dir, entry.Name()), out); err != nil {
				return err
			}
			continue
		}
		if beatmap.IsIndicator(entry.Name()) {
			indicator = true
		}
	}
	if indicator {
		*out = append(*out, dir)
	}
	return nil
}

// Partition is one slice of a split.
type Partition string

const (
	Train      Partition = "train"
	Validation Partition = "validation"
	Test       Partition = "test"
)

// Split cuts folders at int(n*train) and int(n*(train+validation)), keeping
// order. Fractions are assumed validated.
func Split(folders []string, train, validation float64) map[Partition][]string {
	n := len(folders)
	valStart := int(float64(n) * train)
	testStart := int(float64(n) * (train + validation))
	if testStart > n {
		testStart = n
	}
	return map[Partition][]string{
		Train:      folders[:valStart:valStart],
		Validation: folders[valStart:testStart:testStart],
		Test:       folders[testStart:],
	}
}

// Partitions lists partitions in output order.
var Partitions = []Partition{Train, Validation, Test}
