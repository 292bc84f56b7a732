// Package logging assembles structured slog loggers and formatting helpers used
// across beatset.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so pipeline code can tag log lines with the
// run ID and orchestrator phase. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same field names (folder, source, event_type, error_hint).
package logging
