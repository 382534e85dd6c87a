package testsupport

import (
	"context"
	"testing"

	"thumbsmith/internal/checkpoint"
	"thumbsmith/internal/config"
)

// MustOpenStore opens a checkpoint.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// PutRecord persists a record for tests.
func PutRecord(t testing.TB, store *checkpoint.Store, record *checkpoint.WorkRecord) {
	t.Helper()

	if err := store.Put(context.Background(), record); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}
