package logging_test

import (
	"context"
	"testing"

	"thumbsmith/internal/logging"
	"thumbsmith/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewDefaultsToConsole(t *testing.T) {
	logger, err := logging.New(logging.Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithGroup(context.Background(), "pragmatic-play")
	ctx = services.WithEntity(ctx, "gate-of-olympus")
	ctx = services.WithPhase(ctx, "fetching")

	fields := logging.ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	keys := map[string]bool{}
	for _, attr := range fields {
		keys[attr.Key] = true
	}
	for _, want := range []string{logging.FieldGroup, logging.FieldEntityID, logging.FieldPhase} {
		if !keys[want] {
			t.Errorf("missing field %s", want)
		}
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected fallback logger")
	}
}
