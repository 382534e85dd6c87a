package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"thumbsmith/internal/config"
	"thumbsmith/internal/services"
)

// Store persists work records and group aggregates in SQLite. The store is
// safe for concurrent reads; writes to the same key are serialized by the
// pipeline coordinator (single-writer invariant), not by the store.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the checkpoint database and verifies the
// schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "open", "ensure directories", err)
	}

	dbPath := filepath.Join(cfg.Paths.CheckpointDir, "checkpoints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrPersistence, "checkpoint", "open", "apply pragma", execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "open", "init schema", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the backing database file.
func (s *Store) Path() string {
	return s.path
}

// Put persists record, replacing any prior value for its key. The write is
// durable on return.
func (s *Store) Put(ctx context.Context, record *WorkRecord) error {
	if record == nil {
		return services.Wrap(services.ErrPersistence, "checkpoint", "put", "record is nil", nil)
	}
	record.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO work_records (
            group_key, entity_id, status, attempts, content_fingerprint,
            output_path, reason, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (group_key, entity_id) DO UPDATE SET
            status = excluded.status,
            attempts = excluded.attempts,
            content_fingerprint = excluded.content_fingerprint,
            output_path = excluded.output_path,
            reason = excluded.reason,
            updated_at = excluded.updated_at`,
		record.GroupKey,
		record.EntityID,
		record.Status,
		record.Attempts,
		nullableString(record.ContentFingerprint),
		nullableString(record.OutputPath),
		nullableString(record.Reason),
		record.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "checkpoint", "put", record.Key(), err)
	}
	return nil
}

// Get fetches the record for (groupKey, entityID). Returns nil when absent.
func (s *Store) Get(ctx context.Context, groupKey, entityID string) (*WorkRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM work_records WHERE group_key = ? AND entity_id = ?`,
		groupKey, entityID,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "get", RecordKey(groupKey, entityID), err)
	}
	return record, nil
}

// Exists reports whether a record exists for (groupKey, entityID).
func (s *Store) Exists(ctx context.Context, groupKey, entityID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM work_records WHERE group_key = ? AND entity_id = ?`,
		groupKey, entityID,
	).Scan(&count)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "checkpoint", "exists", RecordKey(groupKey, entityID), err)
	}
	return count > 0, nil
}

// Delete removes the record for (groupKey, entityID), if any.
func (s *Store) Delete(ctx context.Context, groupKey, entityID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM work_records WHERE group_key = ? AND entity_id = ?`,
		groupKey, entityID,
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "checkpoint", "delete", RecordKey(groupKey, entityID), err)
	}
	return nil
}

// ListGroup returns all records under a group ordered by entity identifier.
// Needed to rebuild the group aggregate on resume.
func (s *Store) ListGroup(ctx context.Context, groupKey string) ([]*WorkRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM work_records WHERE group_key = ? ORDER BY entity_id`,
		groupKey,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "list group", groupKey, err)
	}
	defer rows.Close()

	var records []*WorkRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "checkpoint", "list group", groupKey, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "list group", groupKey, err)
	}
	return records, nil
}

// GroupKeys returns every group key present in the store.
func (s *Store) GroupKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT group_key FROM work_records ORDER BY group_key`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "group keys", "", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "checkpoint", "group keys", "", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "group keys", "", err)
	}
	return keys, nil
}

// ResetInProgress returns records stuck in_progress from a prior run back to
// pending. Their outcome is unknown, so they are retried.
func (s *Store) ResetInProgress(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE work_records SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusInProgress,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "checkpoint", "reset in_progress", "", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "checkpoint", "reset in_progress", "rows affected", err)
	}
	return affected, nil
}

// PutGroup persists a group aggregate record.
func (s *Store) PutGroup(ctx context.Context, run *GroupRun) error {
	if run == nil {
		return services.Wrap(services.ErrPersistence, "checkpoint", "put group", "run is nil", nil)
	}
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO group_runs (
            group_key, total_entries, completed_count, failed_count,
            output_directory, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (group_key) DO UPDATE SET
            total_entries = excluded.total_entries,
            completed_count = excluded.completed_count,
            failed_count = excluded.failed_count,
            output_directory = excluded.output_directory,
            updated_at = excluded.updated_at`,
		run.GroupKey,
		run.TotalEntries,
		run.CompletedCount,
		run.FailedCount,
		nullableString(run.OutputDirectory),
		run.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "checkpoint", "put group", run.GroupKey, err)
	}
	return nil
}

// GetGroup fetches the aggregate record for a group. Returns nil when absent.
func (s *Store) GetGroup(ctx context.Context, groupKey string) (*GroupRun, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT group_key, total_entries, completed_count, failed_count, output_directory, updated_at
         FROM group_runs WHERE group_key = ?`,
		groupKey,
	)
	var (
		run        GroupRun
		outputDir  sql.NullString
		updatedRaw string
	)
	err := row.Scan(&run.GroupKey, &run.TotalEntries, &run.CompletedCount, &run.FailedCount, &outputDir, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "get group", groupKey, err)
	}
	run.OutputDirectory = outputDir.String
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	return &run, nil
}

// Clear removes all records and group aggregates.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_records`)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "checkpoint", "clear", "", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_runs`); err != nil {
		return 0, services.Wrap(services.ErrPersistence, "checkpoint", "clear", "group runs", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_records GROUP BY status`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "stats", "", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "checkpoint", "stats", "", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "stats", "", err)
	}
	return stats, nil
}

// StatsByGroup returns per-group counts of records by status.
func (s *Store) StatsByGroup(ctx context.Context) (map[string]map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_key, status, COUNT(1) FROM work_records GROUP BY group_key, status`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "stats by group", "", err)
	}
	defer rows.Close()

	stats := make(map[string]map[Status]int)
	for rows.Next() {
		var group string
		var status Status
		var count int
		if err := rows.Scan(&group, &status, &count); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "checkpoint", "stats by group", "", err)
		}
		if stats[group] == nil {
			stats[group] = make(map[Status]int)
		}
		stats[group][status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "checkpoint", "stats by group", "", err)
	}
	return stats, nil
}

const recordColumns = "group_key, entity_id, status, attempts, content_fingerprint, output_path, reason, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*WorkRecord, error) {
	var (
		record      WorkRecord
		statusStr   string
		fingerprint sql.NullString
		outputPath  sql.NullString
		reason      sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(
		&record.GroupKey,
		&record.EntityID,
		&statusStr,
		&record.Attempts,
		&fingerprint,
		&outputPath,
		&reason,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	record.Status = Status(statusStr)
	record.ContentFingerprint = fingerprint.String
	record.OutputPath = outputPath.String
	record.Reason = reason.String
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return &record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
