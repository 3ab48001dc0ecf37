package task

import (
	"strings"

	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
)

// Update applies a partial change set. Every supplied field is validated
// before anything changes. The scheduler then sees, in order, the trigger
// change, the membership diff, and finally the status transition.
func (t *Task) Update(env Env, cs ChangeSet) error {
	var (
		newTrig   *trigger.Trigger
		newStatus Status
		incoming  []uuid.UUID
		err       error
	)
	if hasTrigger(cs.Trigger) {
		if newTrig, err = env.Triggers.Build(*cs.Trigger); err != nil {
			return err
		}
	}
	if cs.Name != nil && strings.TrimSpace(*cs.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if cs.Status != nil {
		if newStatus, err = ParseStatus(*cs.Status); err != nil {
			return err
		}
	}
	if cs.Workflows != nil {
		incoming = dedupe(*cs.Workflows)
	}

	// a running task without a trigger that gains one is scheduled once, at the end
	scheduleAtEnd := false

	if newTrig != nil {
		switch {
		case t.Active() && newTrig.IsUnspecified():
			if err := env.Scheduler.Unschedule(t.id, t.Workflows()); err != nil {
				return &SchedulerError{Op: "unschedule", TaskID: t.id, Err: err}
			}
		case t.Active():
			if err := env.Scheduler.UpdateTrigger(t.id, newTrig); err != nil {
				return &SchedulerError{Op: "update trigger", TaskID: t.id, Err: err}
			}
		case t.status == StatusRunning && !newTrig.IsUnspecified():
			scheduleAtEnd = true
		}
		t.trig = newTrig
	}

	if cs.Name != nil {
		t.name = strings.TrimSpace(*cs.Name)
	}
	if cs.Description != nil {
		t.description = *cs.Description
	}

	if cs.Workflows != nil {
		added, removed := Diff(t.workflows, incoming)
		if t.Active() && !scheduleAtEnd {
			if len(added) > 0 {
				if err := env.Scheduler.Schedule(t.id, env.Executor, added, t.trig); err != nil {
					return &SchedulerError{Op: "schedule", TaskID: t.id, Err: err}
				}
			}
			if len(removed) > 0 {
				if err := env.Scheduler.Unschedule(t.id, removed); err != nil {
					return &SchedulerError{Op: "unschedule", TaskID: t.id, Err: err}
				}
			}
		}
		t.workflows = incoming
	}

	if cs.Status != nil && newStatus != t.status {
		switch newStatus {
		case StatusRunning:
			if err := t.Start(env); err != nil {
				return err
			}
		case StatusStopped:
			// nothing was scheduled yet for the new trigger
			if scheduleAtEnd {
				t.status = StatusStopped
				scheduleAtEnd = false
			} else if err := t.Stop(env); err != nil {
				return err
			}
		}
	}

	if scheduleAtEnd {
		if err := env.Scheduler.Schedule(t.id, env.Executor, t.Workflows(), t.trig); err != nil {
			return &SchedulerError{Op: "schedule", TaskID: t.id, Err: err}
		}
	}
	return nil
}

// Start marks the task running and schedules all its workflows.
// No-op when already running.
func (t *Task) Start(env Env) error {
	if t.status == StatusRunning {
		return nil
	}
	if !t.trig.IsUnspecified() {
		// rebuilt from the stored args
		trig, err := env.Triggers.Build(t.trig.Spec())
		if err != nil {
			return err
		}
		if err := env.Scheduler.Schedule(t.id, env.Executor, t.Workflows(), trig); err != nil {
			return &SchedulerError{Op: "schedule", TaskID: t.id, Err: err}
		}
		t.trig = trig
	}
	t.status = StatusRunning
	return nil
}

// Stop marks the task stopped and unschedules all its workflows.
// The trigger is kept so a later Start resumes it. No-op when already stopped.
func (t *Task) Stop(env Env) error {
	if t.status == StatusStopped {
		return nil
	}
	if err := env.Scheduler.Unschedule(t.id, t.Workflows()); err != nil {
		return &SchedulerError{Op: "unschedule", TaskID: t.id, Err: err}
	}
	t.status = StatusStopped
	return nil
}
