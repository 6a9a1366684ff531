// Package state implements AetherFlow's durable, crash-safe state store: a
// single SQLite file per flow holding three tables (job_runs, step_runs,
// locks) with atomic single-row upserts, per spec.md §4.1.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Job status values (StateRecord.JobRun.status).
const (
	JobRunning = "RUNNING"
	JobSuccess = "SUCCESS"
	JobFailed  = "FAILED"
	JobBlocked = "BLOCKED"
	JobSkipped = "SKIPPED"
)

// Step status values (StateRecord.StepRun.status). Only these two are ever
// written: absence of a row means "not completed" — there is no RUNNING/FAILED
// row for a step, by design (spec.md §3, §9 "Resume state").
const (
	StepSuccess = "SUCCESS"
	StepSkipped = "SKIPPED"
)

// Store is a handle to one flow's SQLite-backed state database.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) and migrates the state database at path, matching
// the schema of the Python reference implementation's state.py.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("state: create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY under WAL for this
	// append-mostly, low-concurrency workload; reads still go through the
	// same serialized connection, which is cheap at this table size.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS job_runs(
			job_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY(job_id, run_id)
		);`,
		`CREATE TABLE IF NOT EXISTS step_runs(
			job_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY(job_id, run_id, step_id)
		);`,
		`CREATE TABLE IF NOT EXISTS locks(
			key TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("state: init schema: %w", err)
		}
	}
	return nil
}

// SetJobStatus atomically upserts a JobRun row. Re-setting the same value is
// idempotent; overwriting a terminal status is allowed by this layer. The
// runner writes RUNNING and then a terminal status each time it executes a
// job, including a job already recorded as SUCCESS under a resumed run_id.
func (s *Store) SetJobStatus(ctx context.Context, jobID, runID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO job_runs(job_id, run_id, status, updated_at) VALUES (?,?,?,?)`,
		jobID, runID, status, now())
	if err != nil {
		return fmt.Errorf("state: set job status: %w", err)
	}
	return nil
}

// GetJobStatus returns the current JobRun status, or ErrNotFound if absent.
func (s *Store) GetJobStatus(ctx context.Context, jobID, runID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM job_runs WHERE job_id=? AND run_id=?`, jobID, runID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("state: get job status: %w", err)
	}
	return status, nil
}

// SetStepStatus atomically upserts a StepRun row. Per spec.md §4.1, only
// SUCCESS/SKIPPED are ever written here.
func (s *Store) SetStepStatus(ctx context.Context, jobID, runID, stepID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO step_runs(job_id, run_id, step_id, status, updated_at) VALUES (?,?,?,?,?)`,
		jobID, runID, stepID, status, now())
	if err != nil {
		return fmt.Errorf("state: set step status: %w", err)
	}
	return nil
}

// GetStepStatus returns the StepRun status, or ErrNotFound if no row exists —
// absence is meaningful: the step has not successfully completed.
func (s *Store) GetStepStatus(ctx context.Context, jobID, runID, stepID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM step_runs WHERE job_id=? AND run_id=? AND step_id=?`,
		jobID, runID, stepID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("state: get step status: %w", err)
	}
	return status, nil
}

// TryAcquireLock returns true when the row is absent, expired, or already
// owned by owner — writing {owner, now+ttl} in the same atomic step — and
// false when a different owner holds a non-expired row. This is stricter
// than the reference implementation, which never re-acquires for the same
// owner; spec.md §4.1 requires the same-owner case to succeed.
func (s *Store) TryAcquireLock(ctx context.Context, key, owner string, ttlSeconds int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("state: acquire lock: begin: %w", err)
	}
	defer tx.Rollback()

	n := now()
	if _, err := tx.ExecContext(ctx, `DELETE FROM locks WHERE expires_at <= ?`, n); err != nil {
		return false, fmt.Errorf("state: acquire lock: sweep expired: %w", err)
	}

	var curOwner string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT owner, expires_at FROM locks WHERE key=?`, key).Scan(&curOwner, &expiresAt)
	switch {
	case err == sql.ErrNoRows:
		// absent: fall through to insert
	case err != nil:
		return false, fmt.Errorf("state: acquire lock: lookup: %w", err)
	case curOwner != owner:
		return false, nil
	}

	exp := n + int64(ttlSeconds)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO locks(key, owner, expires_at) VALUES (?,?,?)`, key, owner, exp); err != nil {
		return false, fmt.Errorf("state: acquire lock: write: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("state: acquire lock: commit: %w", err)
	}
	return true, nil
}

// ReleaseLock deletes the row iff it is owned by owner; a no-op otherwise.
func (s *Store) ReleaseLock(ctx context.Context, key, owner string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE key=? AND owner=?`, key, owner)
	if err != nil {
		return fmt.Errorf("state: release lock: %w", err)
	}
	return nil
}

func now() int64 { return time.Now().Unix() }
