package db

import (
	"time"

	"github.com/google/uuid"
)

// Task is a stored scheduled task row with its workflow membership
type Task struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	TriggerType string      `json:"trigger_type"`
	TriggerArgs string      `json:"trigger_args"`
	Workflows   []uuid.UUID `json:"workflows"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Run represents one firing of a workflow on behalf of a task
type Run struct {
	ID         int64      `json:"id"`
	TaskID     int64      `json:"task_id"`
	WorkflowID uuid.UUID  `json:"workflow_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)
