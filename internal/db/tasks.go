package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const taskColumns = `id, name, description, status, trigger_type, trigger_args, created_at, updated_at`

// CreateTask inserts the task row and its workflow membership, setting ID and timestamps
func (q queries) CreateTask(ctx context.Context, task *Task) error {
	now := time.Now().UTC()
	err := q.queryRow(ctx, `
		INSERT INTO scheduled_task (name, description, status, trigger_type, trigger_args, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, task.Name, task.Description, task.Status, task.TriggerType, argsOrEmpty(task.TriggerArgs), now, now).Scan(&task.ID)
	if err != nil {
		return storeErr("create task", err)
	}
	task.CreatedAt, task.UpdatedAt = now, now

	return storeErr("create task", q.ReplaceWorkflowIDs(ctx, task.ID, task.Workflows))
}

// GetTask retrieves a task by ID
func (q queries) GetTask(ctx context.Context, id int64) (*Task, error) {
	task, err := scanTask(q.queryRow(ctx, `SELECT `+taskColumns+` FROM scheduled_task WHERE id = ?`, id))
	if err != nil {
		return nil, storeErr("get task", err)
	}
	if task.Workflows, err = q.LoadWorkflowIDs(ctx, id); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks retrieves all tasks ordered by ID
func (q queries) ListTasks(ctx context.Context) ([]*Task, error) {
	rows, err := q.query(ctx, `SELECT `+taskColumns+` FROM scheduled_task ORDER BY id`)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var tasks []*Task
	byID := make(map[int64]*Task)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("list tasks", err)
		}
		task.Workflows = []uuid.UUID{}
		tasks = append(tasks, task)
		byID[task.ID] = task
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list tasks", err)
	}
	rows.Close()

	members, err := q.query(ctx, `SELECT task_id, workflow_id FROM scheduled_workflow ORDER BY task_id, position, id`)
	if err != nil {
		return nil, storeErr("list workflows", err)
	}
	defer members.Close()

	for members.Next() {
		var (
			taskID int64
			id     uuid.UUID
		)
		if err := members.Scan(&taskID, &id); err != nil {
			return nil, storeErr("list workflows", err)
		}
		if task, ok := byID[taskID]; ok {
			task.Workflows = append(task.Workflows, id)
		}
	}
	return tasks, storeErr("list workflows", members.Err())
}

// SaveTask updates the task row and replaces its workflow membership
func (q queries) SaveTask(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now().UTC()
	res, err := q.exec(ctx, `
		UPDATE scheduled_task SET name = ?, description = ?, status = ?, trigger_type = ?, trigger_args = ?, updated_at = ?
		WHERE id = ?
	`, task.Name, task.Description, task.Status, task.TriggerType, argsOrEmpty(task.TriggerArgs), task.UpdatedAt, task.ID)
	if err := expectRow(res, err); err != nil {
		return storeErr("save task", err)
	}
	return q.ReplaceWorkflowIDs(ctx, task.ID, task.Workflows)
}

// DeleteTask deletes a task; membership and run rows cascade
func (q queries) DeleteTask(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM scheduled_task WHERE id = ?`, id)
	return storeErr("delete task", expectRow(res, err))
}

// LoadWorkflowIDs returns a task's workflow ids in membership order
func (q queries) LoadWorkflowIDs(ctx context.Context, taskID int64) ([]uuid.UUID, error) {
	rows, err := q.query(ctx, `SELECT workflow_id FROM scheduled_workflow WHERE task_id = ? ORDER BY position, id`, taskID)
	if err != nil {
		return nil, storeErr("load workflows", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("load workflows", err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr("load workflows", rows.Err())
}

// ReplaceWorkflowIDs sets a task's membership to exactly ids
func (q queries) ReplaceWorkflowIDs(ctx context.Context, taskID int64, ids []uuid.UUID) error {
	if _, err := q.exec(ctx, `DELETE FROM scheduled_workflow WHERE task_id = ?`, taskID); err != nil {
		return storeErr("replace workflows", err)
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := q.exec(ctx, `
			INSERT INTO scheduled_workflow (task_id, workflow_id, position) VALUES (?, ?, ?)
		`, taskID, id, i); err != nil {
			return storeErr("replace workflows", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	task := &Task{}
	err := row.Scan(&task.ID, &task.Name, &task.Description, &task.Status, &task.TriggerType, &task.TriggerArgs, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func argsOrEmpty(args string) string {
	if args == "" {
		return "{}"
	}
	return args
}
