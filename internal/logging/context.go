package logging

import (
	"context"
	"log/slog"

	"fieldprep/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPhase is the standardized structured logging key for workflow phase names.
	FieldPhase = "phase"
	// FieldScene is the standardized structured logging key for scene names.
	FieldScene = "scene"
	// FieldFieldID is the standardized structured logging key for field identifiers.
	FieldFieldID = "field_id"
	// FieldRunID is the standardized structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldEventType is the standardized structured logging key for machine-readable event tags.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if scene, ok := services.SceneFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldScene, scene))
	}
	if fieldID, ok := services.FieldFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFieldID, fieldID))
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
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
	return logger.With(attrsToArgs(fields)...)
}
