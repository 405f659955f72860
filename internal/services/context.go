package services

import "context"

type contextKey string

const (
	sceneKey contextKey = "scene"
	phaseKey contextKey = "phase"
	fieldKey contextKey = "field_id"
	runIDKey contextKey = "run_id"
)

// WithScene annotates context with the scene name being processed.
func WithScene(ctx context.Context, scene string) context.Context {
	if scene == "" {
		return ctx
	}
	return context.WithValue(ctx, sceneKey, scene)
}

// SceneFromContext returns the scene name if present.
func SceneFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sceneKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the workflow phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phaseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithField annotates context with the field identifier being processed.
func WithField(ctx context.Context, fieldID string) context.Context {
	if fieldID == "" {
		return ctx
	}
	return context.WithValue(ctx, fieldKey, fieldID)
}

// FieldFromContext returns the field identifier if present.
func FieldFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(fieldKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
