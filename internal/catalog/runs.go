package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
)

// Run records one execution of a pipeline stage. Run identifiers are never
// reused; every output manifest row carries the run_id that produced it.
type Run struct {
	RunID     string
	Stage     string
	Status    RunStatus
	StartedAt time.Time
	EndedAt   *time.Time
	Notes     string
}

// BeginRun registers a new run for the given stage and returns it in
// running state with a fresh identifier.
func (s *Store) BeginRun(ctx context.Context, stage string) (*Run, error) {
	run := &Run{
		RunID:     uuid.NewString(),
		Stage:     stage,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (run_id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		run.RunID,
		run.Stage,
		string(run.Status),
		run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// EndRun finalizes a run with a terminal status and optional notes.
func (s *Store) EndRun(ctx context.Context, runID string, status RunStatus, notes string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, ended_at = ?, notes = ? WHERE run_id = ?`,
		string(status),
		time.Now().UTC().Format(time.RFC3339Nano),
		nullableString(notes),
		runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("end run: unknown run_id %q", runID)
	}
	return nil
}

// GetRun fetches a run by identifier, or nil when unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT run_id, stage, status, started_at, ended_at, notes FROM runs WHERE run_id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, stage, status, started_at, ended_at, notes
         FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		runID      string
		stage      string
		statusStr  string
		startedRaw string
		endedRaw   sql.NullString
		notes      sql.NullString
	)
	if err := scanner.Scan(&runID, &stage, &statusStr, &startedRaw, &endedRaw, &notes); err != nil {
		return nil, err
	}

	run := &Run{
		RunID:  runID,
		Stage:  stage,
		Status: RunStatus(statusStr),
		Notes:  notes.String,
	}
	if started, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, err := time.Parse(time.RFC3339Nano, endedRaw.String); err == nil {
			run.EndedAt = &ended
		}
	}
	return run, nil
}
