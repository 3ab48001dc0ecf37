package db

import (
	"context"
	"time"
)

const runColumns = `id, task_id, workflow_id, started_at, ended_at, status, error`

// CreateRun creates a new run record
func (q queries) CreateRun(ctx context.Context, run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusPending
	}
	err := q.queryRow(ctx, `
		INSERT INTO workflow_run (task_id, workflow_id, started_at, status, error)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, run.TaskID, run.WorkflowID, run.StartedAt, run.Status, run.Error).Scan(&run.ID)
	return storeErr("create run", err)
}

// UpdateRun updates a run
func (q queries) UpdateRun(ctx context.Context, run *Run) error {
	res, err := q.exec(ctx, `
		UPDATE workflow_run SET ended_at = ?, status = ?, error = ?
		WHERE id = ?
	`, run.EndedAt, run.Status, run.Error, run.ID)
	return storeErr("update run", expectRow(res, err))
}

// GetRun retrieves a specific run by ID
func (q queries) GetRun(ctx context.Context, id int64) (*Run, error) {
	rows, err := q.query(ctx, `SELECT `+runColumns+` FROM workflow_run WHERE id = ?`, id)
	if err != nil {
		return nil, storeErr("get run", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, storeErr("get run", err)
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return runs[0], nil
}

// ListRuns retrieves the most recent runs for a task, newest first
func (q queries) ListRuns(ctx context.Context, taskID int64, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.query(ctx, `
		SELECT `+runColumns+` FROM workflow_run
		WHERE task_id = ? ORDER BY started_at DESC, id DESC LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, storeErr("list runs", err)
	}
	runs, err := scanRuns(rows)
	return runs, storeErr("list runs", err)
}

// LastRunStatuses retrieves the last run status for all tasks
func (q queries) LastRunStatuses(ctx context.Context) (map[int64]RunStatus, error) {
	rows, err := q.query(ctx, `
		SELECT task_id, status FROM workflow_run
		WHERE id IN (
			SELECT MAX(id) FROM workflow_run GROUP BY task_id
		)
	`)
	if err != nil {
		return nil, storeErr("last run statuses", err)
	}
	defer rows.Close()

	statuses := make(map[int64]RunStatus)
	for rows.Next() {
		var (
			taskID int64
			status string
		)
		if err := rows.Scan(&taskID, &status); err != nil {
			return nil, storeErr("last run statuses", err)
		}
		statuses[taskID] = RunStatus(status)
	}
	return statuses, storeErr("last run statuses", rows.Err())
}

// MarkStaleRunsAsFailed marks all "running" runs as failed.
// Called on startup to clean up runs interrupted by a restart.
func (q queries) MarkStaleRunsAsFailed(ctx context.Context) (int64, error) {
	res, err := q.exec(ctx, `
		UPDATE workflow_run
		SET status = ?, error = 'scheduler restarted during execution', ended_at = ?
		WHERE status = ?
	`, RunStatusFailed, time.Now().UTC(), RunStatusRunning)
	if err != nil {
		return 0, storeErr("mark stale runs", err)
	}
	n, err := res.RowsAffected()
	return n, storeErr("mark stale runs", err)
}

func scanRuns(rows interface {
	scanner
	Next() bool
	Err() error
	Close() error
}) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.TaskID, &run.WorkflowID, &run.StartedAt, &run.EndedAt, &run.Status, &run.Error); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
