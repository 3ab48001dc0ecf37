package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrNoSchedule is returned when asked to register jobs for a trigger that never fires
var ErrNoSchedule = errors.New("scheduler: trigger has no schedule")

// Executor runs one workflow on behalf of a scheduled task
type Executor interface {
	ExecuteWorkflow(ctx context.Context, taskID int64, workflowID uuid.UUID) error
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, taskID int64, workflowID uuid.UUID) error

func (f ExecutorFunc) ExecuteWorkflow(ctx context.Context, taskID int64, workflowID uuid.UUID) error {
	return f(ctx, taskID, workflowID)
}

// Job describes one registered (task, workflow) entry
type Job struct {
	TaskID      int64      `json:"task_id"`
	WorkflowID  uuid.UUID  `json:"workflow_id"`
	TriggerType string     `json:"trigger_type"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// Options configures a Scheduler
type Options struct {
	Location   *time.Location
	JobTimeout time.Duration
	Logger     zerolog.Logger
}

// group holds every job of one task; all of them share the task's trigger
type group struct {
	trig    *trigger.Trigger
	exec    Executor
	entries map[uuid.UUID]cron.EntryID
}

// Scheduler is the live registry of recurring jobs, keyed by task id
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration
	groups  map[int64]*group
	mu      sync.RWMutex
	running bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler. Jobs are registered immediately but only fire after Start.
func New(opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	log := opts.Logger.With().Str("component", "scheduler").Logger()
	clog := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog)),
		),
		log:     log,
		timeout: timeout,
		groups:  make(map[int64]*group),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins firing registered jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info().Int("tasks", len(s.groups)).Msg("scheduler started")
}

// Stop stops firing jobs and waits for running ones until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.cancel()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule registers one job per workflow id under taskID. Ids already registered
// are left alone; a trigger differing from the registered one re-binds the whole task.
func (s *Scheduler) Schedule(taskID int64, exec Executor, workflowIDs []uuid.UUID, trig *trigger.Trigger) error {
	if trig.IsUnspecified() || trig.Schedule() == nil {
		return ErrNoSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[taskID]
	if !ok {
		g = &group{trig: trig, exec: exec, entries: make(map[uuid.UUID]cron.EntryID)}
		s.groups[taskID] = g
	}
	g.exec = exec
	if g.trig.Key() != trig.Key() {
		s.rebindLocked(taskID, g, trig)
	}

	added := 0
	for _, id := range workflowIDs {
		if _, ok := g.entries[id]; ok {
			continue
		}
		g.entries[id] = s.cron.Schedule(g.trig.Schedule(), s.job(taskID, id, g))
		added++
	}
	if len(g.entries) == 0 {
		delete(s.groups, taskID)
	}

	if added > 0 {
		s.log.Debug().Int64("task_id", taskID).Int("added", added).Str("trigger", trig.Key()).Msg("scheduled workflows")
	}
	return nil
}

// Unschedule removes the jobs for the given workflow ids. Unknown ids are ignored.
func (s *Scheduler) Unschedule(taskID int64, workflowIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[taskID]
	if !ok {
		return nil
	}
	removed := 0
	for _, id := range workflowIDs {
		if entryID, ok := g.entries[id]; ok {
			s.cron.Remove(entryID)
			delete(g.entries, id)
			removed++
		}
	}
	if len(g.entries) == 0 {
		delete(s.groups, taskID)
	}

	if removed > 0 {
		s.log.Debug().Int64("task_id", taskID).Int("removed", removed).Msg("unscheduled workflows")
	}
	return nil
}

// UpdateTrigger re-registers every job of taskID with trig. No-op when nothing is registered.
func (s *Scheduler) UpdateTrigger(taskID int64, trig *trigger.Trigger) error {
	if trig.IsUnspecified() || trig.Schedule() == nil {
		return ErrNoSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[taskID]
	if !ok || g.trig.Key() == trig.Key() {
		return nil
	}
	s.rebindLocked(taskID, g, trig)
	s.log.Debug().Int64("task_id", taskID).Str("trigger", trig.Key()).Msg("updated trigger")
	return nil
}

func (s *Scheduler) rebindLocked(taskID int64, g *group, trig *trigger.Trigger) {
	g.trig = trig
	for id, entryID := range g.entries {
		s.cron.Remove(entryID)
		g.entries[id] = s.cron.Schedule(trig.Schedule(), s.job(taskID, id, g))
	}
}

// Forget drops every job of taskID
func (s *Scheduler) Forget(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[taskID]; ok {
		for _, entryID := range g.entries {
			s.cron.Remove(entryID)
		}
		delete(s.groups, taskID)
	}
}

// Jobs returns the workflow ids registered under taskID, sorted
func (s *Scheduler) Jobs(taskID int64) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[taskID]
	if !ok {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// TaskIDs returns the ids of tasks with at least one registered job
func (s *Scheduler) TaskIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TriggerKey returns the key of the trigger registered for taskID
func (s *Scheduler) TriggerKey(taskID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[taskID]
	if !ok {
		return "", false
	}
	return g.trig.Key(), true
}

// NextRun returns the earliest upcoming firing of any job of taskID
func (s *Scheduler) NextRun(taskID int64) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[taskID]
	if !ok {
		return nil
	}
	var next *time.Time
	for _, entryID := range g.entries {
		if t := s.nextLocked(g, entryID); t != nil && (next == nil || t.Before(*next)) {
			next = t
		}
	}
	return next
}

// NextRuns returns next run times for all scheduled tasks
func (s *Scheduler) NextRuns() map[int64]time.Time {
	ids := s.TaskIDs()
	result := make(map[int64]time.Time, len(ids))
	for _, id := range ids {
		if next := s.NextRun(id); next != nil {
			result[id] = *next
		}
	}
	return result
}

// Snapshot lists every registered job ordered by task then workflow id
func (s *Scheduler) Snapshot() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []Job
	for taskID, g := range s.groups {
		for id, entryID := range g.entries {
			job := Job{
				TaskID:      taskID,
				WorkflowID:  id,
				TriggerType: string(g.trig.Type()),
				NextRunAt:   s.nextLocked(g, entryID),
			}
			if prev := s.cron.Entry(entryID).Prev; !prev.IsZero() {
				job.LastRunAt = &prev
			}
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].TaskID != jobs[j].TaskID {
			return jobs[i].TaskID < jobs[j].TaskID
		}
		return jobs[i].WorkflowID.String() < jobs[j].WorkflowID.String()
	})
	return jobs
}

// nextLocked reads the entry's next firing, computing it from the trigger
// when the cron loop has not filled it in yet
func (s *Scheduler) nextLocked(g *group, entryID cron.EntryID) *time.Time {
	next := s.cron.Entry(entryID).Next
	if next.IsZero() && !s.running {
		next = g.trig.Schedule().Next(time.Now())
	}
	if next.IsZero() {
		return nil
	}
	return &next
}

func (s *Scheduler) job(taskID int64, workflowID uuid.UUID, g *group) cron.Job {
	return cron.FuncJob(func() {
		s.mu.RLock()
		exec := g.exec
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		log := s.log.With().Int64("task_id", taskID).Stringer("workflow_id", workflowID).Logger()
		log.Debug().Msg("firing workflow")
		if err := exec.ExecuteWorkflow(ctx, taskID, workflowID); err != nil {
			log.Error().Err(err).Msg("workflow execution failed")
		}
	})
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
