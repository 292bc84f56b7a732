package logging

import (
	"context"
	"log/slog"

	"beatset/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the build/rebuild run identifier.
	FieldRunID = "run_id"
	// FieldPhase is the standardized key for orchestrator phase names.
	FieldPhase = "phase"
	// FieldFolder is the standardized key for song folder paths.
	FieldFolder = "folder"
	// FieldSource is the standardized key for audio source paths.
	FieldSource = "source"
	// FieldDifficulty is the standardized key for chart difficulty names.
	FieldDifficulty = "difficulty"
	// FieldProgress is the standardized key for "index/total" progress markers.
	FieldProgress = "progress"
	// FieldEventType classifies a log line for filtering (e.g. "folder_skipped").
	FieldEventType = "event_type"
	// FieldErrorHint tells the reader what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	FieldError  = "error"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs(fields))
}
