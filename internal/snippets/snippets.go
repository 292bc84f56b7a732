// Package snippets slices (song, difficulty) groups into fixed-length
// training windows.
package snippets

import (
	"beatset/internal/config"
	"beatset/internal/songtable"
)

// Options controls windowing.
type Options struct {
	WindowLength int
	Stride       int
}

// OptionsFromConfig reads the [snippets] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{WindowLength: cfg.Snippets.WindowLength, Stride: cfg.Snippets.Stride}
}

// Snippet is one window of consecutive rows from a single group. Rows alias
// the group's backing array and must not be modified.
type Snippet struct {
	Key    songtable.GroupKey
	Index  int
	Offset int
	Rows   []songtable.Row
}

// Count returns the number of full windows over n rows.
func Count(n int, opts Options) int {
	if opts.WindowLength <= 0 || opts.Stride <= 0 || n < opts.WindowLength {
		return 0
	}
	return (n-opts.WindowLength)/opts.Stride + 1
}

// Generate windows a group's rows in order. A trailing window shorter than
// WindowLength is dropped.
func Generate(group songtable.Group, opts Options) []Snippet {
	count := Count(len(group.Rows), opts)
	if count == 0 {
		return nil
	}
	out := make([]Snippet, 0, count)
	for i := 0; i < count; i++ {
		start := i * opts.Stride
		end := start + opts.WindowLength
		out = append(out, Snippet{
			Key:    group.Key,
			Index:  i,
			Offset: start,
			Rows:   group.Rows[start:end:end],
		})
	}
	return out
}
