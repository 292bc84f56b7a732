// Package preflight checks that a build can start: the songs root is
// readable, the output and cache directories are writable, and ffmpeg runs.
//
// The CLI "check" command prints every result; "build" and "cache rebuild"
// run the same checks and stop before any work when one fails.
package preflight
