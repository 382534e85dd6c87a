package pipeline

import (
	"context"
	"sync"

	"thumbsmith/internal/checkpoint"
	"thumbsmith/internal/fetch"
)

// storeRecorder is the coordinator's single-writer path into the checkpoint
// store. The scheduler guarantees Claim and Record are never invoked
// concurrently for the same task; the mutex only protects the attempts map,
// which spans the dispatch and collector goroutines.
type storeRecorder struct {
	store *checkpoint.Store

	mu       sync.Mutex
	attempts map[string]int
}

func newStoreRecorder(store *checkpoint.Store, priorAttempts map[string]int) *storeRecorder {
	if priorAttempts == nil {
		priorAttempts = make(map[string]int)
	}
	return &storeRecorder{store: store, attempts: priorAttempts}
}

// Claim marks the task in_progress before it is dispatched to a worker,
// carrying forward attempt counts from earlier runs.
func (r *storeRecorder) Claim(ctx context.Context, task fetch.Task) error {
	record := &checkpoint.WorkRecord{
		GroupKey: task.GroupKey,
		EntityID: task.EntityID,
		Status:   checkpoint.StatusInProgress,
		Attempts: r.priorAttempts(task),
	}
	return r.store.Put(ctx, record)
}

// Record persists the terminal outcome of a task.
func (r *storeRecorder) Record(ctx context.Context, outcome fetch.Outcome) error {
	record := &checkpoint.WorkRecord{
		GroupKey: outcome.Task.GroupKey,
		EntityID: outcome.Task.EntityID,
		Attempts: r.priorAttempts(outcome.Task) + outcome.Attempts,
	}
	if outcome.Completed {
		record.SetCompleted(outcome.Fingerprint, outcome.OutputPath)
	} else {
		record.SetFailed(outcome.Reason)
	}

	if err := r.store.Put(ctx, record); err != nil {
		return err
	}

	r.mu.Lock()
	r.attempts[record.Key()] = record.Attempts
	r.mu.Unlock()
	return nil
}

func (r *storeRecorder) priorAttempts(task fetch.Task) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[checkpoint.RecordKey(task.GroupKey, task.EntityID)]
}
