package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// BATCH RUNS
// =============================================================================

// SaveBatchRun inserts a run or updates it by ID.
func (c conn) SaveBatchRun(ctx context.Context, r liaison.BatchRun) error {
	query := `
		INSERT INTO batch_runs (id, run_date, run_trigger, status, leaves_completed,
			reminders_created, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			leaves_completed = excluded.leaves_completed,
			reminders_created = excluded.reminders_created,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := c.q.ExecContext(ctx, query,
		r.ID, r.RunDate.String(), r.Trigger, r.Status,
		r.LeavesCompleted, r.RemindersCreated, r.Error,
		formatInstant(r.StartedAt), nullInstant(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch run: %w", err)
	}
	return nil
}

// ListBatchRuns returns the most recent runs first. limit <= 0 means all.
func (c conn) ListBatchRuns(ctx context.Context, limit int) ([]liaison.BatchRun, error) {
	query := `
		SELECT id, run_date, run_trigger, status, leaves_completed, reminders_created,
			error, started_at, completed_at
		FROM batch_runs
		ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []liaison.BatchRun
	for rows.Next() {
		var (
			r                  liaison.BatchRun
			runDate, startedAt string
			completedAt        sql.NullString
		)
		if err := rows.Scan(&r.ID, &runDate, &r.Trigger, &r.Status, &r.LeavesCompleted,
			&r.RemindersCreated, &r.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}

		if r.RunDate, err = calendar.ParseDate(runDate); err != nil {
			return nil, fmt.Errorf("batch run %s: %w", r.ID, err)
		}
		if r.StartedAt, err = parseInstant(startedAt); err != nil {
			return nil, fmt.Errorf("batch run %s: %w", r.ID, err)
		}
		if r.CompletedAt, err = parseNullInstant(completedAt); err != nil {
			return nil, fmt.Errorf("batch run %s: %w", r.ID, err)
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}
