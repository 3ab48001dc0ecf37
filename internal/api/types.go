package api

import (
	"time"

	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/task"
	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
)

// TaskRequest represents a task creation request
type TaskRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      string        `json:"status,omitempty"`
	Workflows   []uuid.UUID   `json:"workflows"`
	TaskTrigger *trigger.Spec `json:"task_trigger,omitempty"`
}

// TaskResponse is the serialized task plus scheduling state
type TaskResponse struct {
	task.JSON
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// TaskListResponse represents a list of tasks
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// RunResponse represents a workflow run in API responses
type RunResponse struct {
	ID         int64      `json:"id"`
	TaskID     int64      `json:"task_id"`
	WorkflowID uuid.UUID  `json:"workflow_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	DurationMs *int64     `json:"duration_ms,omitempty"`
}

// RunsResponse represents a list of runs
type RunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Total int           `json:"total"`
}

// RunStartedResponse is returned when workflows were fired manually
type RunStartedResponse struct {
	TaskID    int64       `json:"task_id"`
	Workflows []uuid.UUID `json:"workflows"`
	Message   string      `json:"message"`
}

// JobsResponse is the live scheduler registry
type JobsResponse struct {
	Jobs  []scheduler.Job `json:"jobs"`
	Total int             `json:"total"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
