package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/task"
	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry is the live scheduler as seen by the service
type Registry interface {
	task.Scheduler
	Jobs(taskID int64) []uuid.UUID
	TaskIDs() []int64
	TriggerKey(taskID int64) (string, bool)
	Forget(taskID int64)
}

// Service owns every mutation of scheduled tasks. Each operation holds the
// task's lock and runs in one store transaction.
type Service struct {
	db       *db.DB
	registry Registry
	exec     scheduler.Executor
	triggers *trigger.Builder
	log      zerolog.Logger

	locks        keyedMutex
	syncMu       sync.Mutex
	syncInterval time.Duration
}

// New creates a new task service
func New(database *db.DB, registry Registry, exec scheduler.Executor, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		db:           database,
		registry:     registry,
		exec:         exec,
		triggers:     trigger.NewBuilder(),
		log:          log.With().Str("component", "service").Logger(),
		syncInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) env() task.Env {
	return task.Env{Scheduler: s.registry, Executor: s.exec, Triggers: s.triggers}
}

// Create persists a new task and schedules it when active
func (s *Service) Create(ctx context.Context, p task.Params) (*task.Task, error) {
	var (
		out      *task.Task
		reserved int64
		unlock   = func() {}
	)
	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		// a placeholder row reserves the id
		row := &db.Task{
			Name:        p.Name,
			Description: p.Description,
			Status:      string(task.StatusStopped),
			TriggerType: string(trigger.TypeUnspecified),
		}
		if err := tx.CreateTask(ctx, row); err != nil {
			return err
		}
		reserved = row.ID
		unlock = s.locks.Lock(reserved)

		t, err := task.New(s.env(), reserved, p)
		if err != nil {
			return err
		}
		if err := tx.SaveTask(ctx, toRow(t)); err != nil {
			return err
		}
		out = t
		return nil
	})
	defer unlock()
	if err != nil {
		if reserved != 0 {
			s.registry.Forget(reserved)
		}
		return nil, err
	}

	s.log.Info().Int64("task_id", out.ID()).Str("name", out.Name()).Bool("active", out.Active()).Msg("task created")
	return out, nil
}

// Get loads one task
func (s *Service) Get(ctx context.Context, id int64) (*task.Task, error) {
	row, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.restore(row)
}

// List loads every task ordered by id
func (s *Service) List(ctx context.Context) ([]*task.Task, error) {
	rows, err := s.db.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]*task.Task, 0, len(rows))
	for _, row := range rows {
		t, err := s.restore(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Update applies a partial change set
func (s *Service) Update(ctx context.Context, id int64, cs task.ChangeSet) (*task.Task, error) {
	return s.mutate(ctx, id, "updated", func(t *task.Task) error {
		return t.Update(s.env(), cs)
	})
}

// Start resumes a task
func (s *Service) Start(ctx context.Context, id int64) (*task.Task, error) {
	return s.mutate(ctx, id, "started", func(t *task.Task) error {
		return t.Start(s.env())
	})
}

// Stop pauses a task, keeping its trigger
func (s *Service) Stop(ctx context.Context, id int64) (*task.Task, error) {
	return s.mutate(ctx, id, "stopped", func(t *task.Task) error {
		return t.Stop(s.env())
	})
}

// Delete removes a task, its membership and its jobs
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		row, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, id); err != nil {
			return err
		}
		if err := s.registry.Unschedule(id, row.Workflows); err != nil {
			return &task.SchedulerError{Op: "unschedule", TaskID: id, Err: err}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			// the row survived the rollback; restore any jobs already removed
			if rerr := s.reconcileLocked(ctx, id); rerr != nil {
				s.log.Warn().Err(rerr).Int64("task_id", id).Msg("resync after failed delete")
			}
		}
		return err
	}

	s.registry.Forget(id)
	s.log.Info().Int64("task_id", id).Msg("task deleted")
	return nil
}

// Runs lists the most recent runs of a task
func (s *Service) Runs(ctx context.Context, id int64, limit int) ([]*db.Run, error) {
	if _, err := s.db.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.db.ListRuns(ctx, id, limit)
}

func (s *Service) mutate(ctx context.Context, id int64, verb string, fn func(t *task.Task) error) (*task.Task, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out *task.Task
	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		row, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		t, err := s.restore(row)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		if err := tx.SaveTask(ctx, toRow(t)); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		var verr *task.ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, db.ErrNotFound) {
			// the registry may have moved ahead of the rolled back record
			if rerr := s.reconcileLocked(ctx, id); rerr != nil {
				s.log.Warn().Err(rerr).Int64("task_id", id).Msg("resync after failed operation")
			}
		}
		return nil, err
	}

	s.log.Info().Int64("task_id", id).Str("status", string(out.Status())).Bool("active", out.Active()).Msg("task " + verb)
	return out, nil
}

func (s *Service) restore(row *db.Task) (*task.Task, error) {
	t, err := task.Restore(s.triggers, task.Record{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Status:      task.Status(row.Status),
		Trigger:     trigger.Spec{Type: trigger.Type(row.TriggerType), Args: json.RawMessage(row.TriggerArgs)},
		Workflows:   row.Workflows,
	})
	if err != nil {
		return nil, fmt.Errorf("stored task %d is invalid: %w", row.ID, err)
	}
	return t, nil
}

func toRow(t *task.Task) *db.Task {
	r := t.Record()
	return &db.Task{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Status:      string(r.Status),
		TriggerType: string(r.Trigger.Type),
		TriggerArgs: string(r.Trigger.Args),
		Workflows:   r.Workflows,
	}
}

// LastRunStatuses returns the status of the latest run per task
func (s *Service) LastRunStatuses(ctx context.Context) (map[int64]db.RunStatus, error) {
	return s.db.LastRunStatuses(ctx)
}
