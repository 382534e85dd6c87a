// Package checkpoint persists per-entry work records and per-group aggregates
// in SQLite so interrupted runs resume without redoing completed work. Keys
// follow "{group_key}:{entity_id}", with "{group_key}:__group__" reserved for
// aggregates. All failures carry the persistence marker and abort the run.
package checkpoint
