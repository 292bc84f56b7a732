// Package dataset orchestrates a build: feature cache recalculation, parallel
// folder processing, merging and windowing into snippets.
//
// The feature cache is written only before folder processing starts and is
// read-only afterwards, so workers never race the cache writer.
package dataset
