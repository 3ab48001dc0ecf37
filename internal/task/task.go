package task

import (
	"encoding/json"
	"strings"

	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
)

// Scheduler is the live job registry a task keeps in sync with its record
type Scheduler interface {
	Schedule(taskID int64, exec scheduler.Executor, workflowIDs []uuid.UUID, trig *trigger.Trigger) error
	Unschedule(taskID int64, workflowIDs []uuid.UUID) error
	UpdateTrigger(taskID int64, trig *trigger.Trigger) error
}

// Env carries the collaborators a task needs for its operations
type Env struct {
	Scheduler Scheduler
	Executor  scheduler.Executor
	Triggers  *trigger.Builder
}

// Params are the construction inputs of a task
type Params struct {
	Name        string
	Description string
	Status      string
	Workflows   []uuid.UUID
	Trigger     *trigger.Spec
}

// ChangeSet is a partial update; nil fields are left untouched
type ChangeSet struct {
	Trigger     *trigger.Spec `json:"task_trigger,omitempty"`
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Workflows   *[]uuid.UUID  `json:"workflows,omitempty"`
	Status      *string       `json:"status,omitempty"`
}

// Empty reports whether the change set carries no field
func (c ChangeSet) Empty() bool {
	return c.Trigger == nil && c.Name == nil && c.Description == nil && c.Workflows == nil && c.Status == nil
}

// Task is a named set of workflows fired on a shared trigger
type Task struct {
	id          int64
	name        string
	description string
	status      Status
	trig        *trigger.Trigger
	workflows   []uuid.UUID
}

// New builds a task and schedules its workflows when it starts out active.
// An unknown or empty status is treated as running.
func New(env Env, id int64, p Params) (*Task, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	trig := trigger.Unspecified()
	if hasTrigger(p.Trigger) {
		var err error
		if trig, err = env.Triggers.Build(*p.Trigger); err != nil {
			return nil, err
		}
	}

	status, err := ParseStatus(p.Status)
	if err != nil {
		status = StatusRunning
	}

	t := &Task{
		id:          id,
		name:        name,
		description: p.Description,
		status:      status,
		trig:        trig,
		workflows:   dedupe(p.Workflows),
	}
	if t.Active() {
		if err := env.Scheduler.Schedule(t.id, env.Executor, t.Workflows(), t.trig); err != nil {
			return nil, &SchedulerError{Op: "schedule", TaskID: t.id, Err: err}
		}
	}
	return t, nil
}

// Record is the persisted form of a task
type Record struct {
	ID          int64
	Name        string
	Description string
	Status      Status
	Trigger     trigger.Spec
	Workflows   []uuid.UUID
}

// Restore rebuilds a task from its stored record without touching the scheduler
func Restore(b *trigger.Builder, r Record) (*Task, error) {
	status, err := ParseStatus(string(r.Status))
	if err != nil {
		return nil, err
	}
	trig, err := b.Build(r.Trigger)
	if err != nil {
		return nil, err
	}
	return &Task{
		id:          r.ID,
		name:        r.Name,
		description: r.Description,
		status:      status,
		trig:        trig,
		workflows:   dedupe(r.Workflows),
	}, nil
}

// Record returns the persisted form of the task
func (t *Task) Record() Record {
	return Record{
		ID:          t.id,
		Name:        t.name,
		Description: t.description,
		Status:      t.status,
		Trigger:     t.trig.Spec(),
		Workflows:   t.Workflows(),
	}
}

func (t *Task) ID() int64                 { return t.id }
func (t *Task) Name() string              { return t.name }
func (t *Task) Description() string       { return t.description }
func (t *Task) Status() Status            { return t.status }
func (t *Task) Trigger() *trigger.Trigger { return t.trig }

// Workflows returns a copy of the workflow membership
func (t *Task) Workflows() []uuid.UUID {
	out := make([]uuid.UUID, len(t.workflows))
	copy(out, t.workflows)
	return out
}

// Active reports whether the task should hold live jobs
func (t *Task) Active() bool {
	return t.status == StatusRunning && !t.trig.IsUnspecified()
}

// JSON is the serialized form of a task
type JSON struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	Workflows   []uuid.UUID  `json:"workflows"`
	TaskTrigger trigger.Spec `json:"task_trigger"`
}

// JSON returns the serialized form. It has no side effects.
func (t *Task) JSON() JSON {
	return JSON{
		ID:          t.id,
		Name:        t.name,
		Description: t.description,
		Status:      t.status,
		Workflows:   t.Workflows(),
		TaskTrigger: t.trig.Spec(),
	}
}

func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.JSON())
}

// hasTrigger treats a missing spec and one without a type the same way
func hasTrigger(s *trigger.Spec) bool {
	return s != nil && s.Type != ""
}
