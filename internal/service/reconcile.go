package service

import (
	"context"
	"errors"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/google/uuid"
)

// Reconcile makes the registry match the store: every active task holds
// exactly its workflows under its trigger, nothing else holds jobs.
func (s *Service) Reconcile(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	rows, err := s.db.ListTasks(ctx)
	if err != nil {
		return err
	}

	var errs []error
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		seen[row.ID] = true
		if err := s.reconcileTask(ctx, row.ID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range s.registry.TaskIDs() {
		if seen[id] {
			continue
		}
		if err := s.reconcileTask(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) reconcileTask(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.reconcileLocked(ctx, id)
}

// reconcileLocked expects the task lock to be held
func (s *Service) reconcileLocked(ctx context.Context, id int64) error {
	row, err := s.db.GetTask(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		if len(s.registry.Jobs(id)) > 0 {
			s.registry.Forget(id)
			s.log.Info().Int64("task_id", id).Msg("dropped jobs of deleted task")
		}
		return nil
	}
	if err != nil {
		return err
	}
	t, err := s.restore(row)
	if err != nil {
		return err
	}

	registered := s.registry.Jobs(id)
	if !t.Active() {
		if len(registered) > 0 {
			s.registry.Forget(id)
			s.log.Info().Int64("task_id", id).Msg("dropped jobs of inactive task")
		}
		return nil
	}

	if key, ok := s.registry.TriggerKey(id); ok && key != t.Trigger().Key() {
		if err := s.registry.UpdateTrigger(id, t.Trigger()); err != nil {
			return err
		}
	}
	if err := s.registry.Schedule(id, s.exec, t.Workflows(), t.Trigger()); err != nil {
		return err
	}

	members := make(map[uuid.UUID]bool)
	for _, wf := range t.Workflows() {
		members[wf] = true
	}
	var extra []uuid.UUID
	for _, wf := range registered {
		if !members[wf] {
			extra = append(extra, wf)
		}
	}
	if len(extra) > 0 {
		if err := s.registry.Unschedule(id, extra); err != nil {
			return err
		}
	}
	return nil
}

// Run reconciles on every tick until ctx is done
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("sync failed")
			}
		}
	}
}

// Boot prepares the registry before traffic is accepted: runs interrupted by
// a restart are marked failed and every active task is rescheduled.
func (s *Service) Boot(ctx context.Context) error {
	n, err := s.db.MarkStaleRunsAsFailed(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn().Int64("runs", n).Msg("marked interrupted runs as failed")
	}
	if err := s.Reconcile(ctx); err != nil {
		return err
	}
	s.log.Info().Int("tasks", len(s.registry.TaskIDs())).Msg("registry reconciled")
	return nil
}
