package services

import "context"

type contextKey string

const (
	groupKey  contextKey = "group"
	entityKey contextKey = "entity_id"
	phaseKey  contextKey = "phase"
	runIDKey  contextKey = "run_id"
)

// WithGroup annotates context with the catalog group key.
func WithGroup(ctx context.Context, group string) context.Context {
	if group == "" {
		return ctx
	}
	return context.WithValue(ctx, groupKey, group)
}

// GroupFromContext returns the group key if present.
func GroupFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(groupKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntity annotates context with the catalog entity identifier.
func WithEntity(ctx context.Context, entityID string) context.Context {
	if entityID == "" {
		return ctx
	}
	return context.WithValue(ctx, entityKey, entityID)
}

// EntityFromContext returns the entity identifier if present.
func EntityFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(entityKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPhase annotates context with the pipeline phase name.
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

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
