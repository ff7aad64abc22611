// Package postgres mirrors task records into PostgreSQL. The checkpoint
// store remains the source of truth; this store is a queryable at-rest copy
// of each task's externally visible state.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/deepnoodle-ai/scribe"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id      TEXT PRIMARY KEY,
	stage        TEXT NOT NULL,
	request      TEXT NOT NULL DEFAULT '',
	final_result TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_stage_idx ON tasks (stage);
`

// Store persists task records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool and ensures the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := &Store{db: db}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertTask implements scribe.TaskRecorder. Inserts create the row with the
// record's timestamp as creation time; updates preserve it.
func (s *Store) UpsertTask(ctx context.Context, record *scribe.TaskRecord) error {
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, stage, request, final_result, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (task_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			request = EXCLUDED.request,
			final_result = EXCLUDED.final_result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		record.TaskID, string(record.Stage), record.Request,
		record.FinalResult, record.Error, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task %q: %w", record.TaskID, err)
	}
	return nil
}

// GetTask returns the record for a task, or (nil, nil) when absent.
func (s *Store) GetTask(ctx context.Context, taskID string) (*scribe.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, stage, request, final_result, error, created_at, updated_at
		FROM tasks WHERE task_id = $1`, taskID)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %q: %w", taskID, err)
	}
	return record, nil
}

// ListTasks returns all task records, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]*scribe.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, stage, request, final_result, error, created_at, updated_at
		FROM tasks ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var records []*scribe.TaskRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	return records, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*scribe.TaskRecord, error) {
	var record scribe.TaskRecord
	var stage string
	if err := row.Scan(&record.TaskID, &stage, &record.Request,
		&record.FinalResult, &record.Error, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Stage = scribe.Stage(stage)
	return &record, nil
}
