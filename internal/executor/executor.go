package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/stream"
	"github.com/ev1stensberg/walkoff/internal/webhook"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned when a firing could not get a dispatch slot before its deadline
var ErrThrottled = errors.New("executor: dispatch throttled")

// Store records runs and resolves task names
type Store interface {
	GetTask(ctx context.Context, id int64) (*db.Task, error)
	CreateRun(ctx context.Context, run *db.Run) error
	UpdateRun(ctx context.Context, run *db.Run) error
}

// Dispatcher hands a run to the workflow engine
type Dispatcher interface {
	Dispatch(ctx context.Context, d webhook.Dispatch) error
}

// Notifier posts run outcomes to a chat webhook
type Notifier interface {
	SendRunResult(ctx context.Context, webhookURL string, n webhook.Notice) error
}

// Publisher receives run lifecycle events
type Publisher interface {
	Publish(ev stream.Event)
}

// Config configures an Executor
type Config struct {
	// Endpoint of the workflow engine; empty means runs are recorded without dispatch
	Endpoint       string
	Token          string
	RateLimit      float64
	Burst          int
	SlackWebhook   string
	DiscordWebhook string
	// NotifyAlways sends notices for successful runs too
	NotifyAlways bool
}

// Executor runs workflows when their task's trigger fires
type Executor struct {
	store      Store
	dispatcher Dispatcher
	limiter    *rate.Limiter
	slack      Notifier
	discord    Notifier
	events     Publisher
	cfg        Config
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a new executor
func New(store Store, cfg Config, log zerolog.Logger) *Executor {
	e := &Executor{
		store:   store,
		slack:   webhook.NewSlack(),
		discord: webhook.NewDiscord(),
		cfg:     cfg,
		log:     log.With().Str("component", "executor").Logger(),
		now:     time.Now,
	}
	if cfg.Endpoint != "" {
		e.dispatcher = webhook.NewEngine(cfg.Endpoint, cfg.Token)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	e.limiter = rate.NewLimiter(limit, burst)
	return e
}

// SetPublisher sets the sink for run started/finished events
func (e *Executor) SetPublisher(p Publisher) {
	e.events = p
}

func (e *Executor) publish(typ stream.EventType, run *db.Run) {
	if e.events == nil {
		return
	}
	e.events.Publish(stream.Event{
		Type:       typ,
		TaskID:     run.TaskID,
		RunID:      run.ID,
		WorkflowID: run.WorkflowID,
		Status:     string(run.Status),
		Error:      run.Error,
	})
}

// Result represents the result of a workflow execution
type Result struct {
	Run      *db.Run
	Duration time.Duration
	Error    error
}

// ExecuteWorkflow records a run of workflowID for taskID and dispatches it
func (e *Executor) ExecuteWorkflow(ctx context.Context, taskID int64, workflowID uuid.UUID) error {
	return e.Execute(ctx, taskID, workflowID).Error
}

// Execute is ExecuteWorkflow returning the full result
func (e *Executor) Execute(ctx context.Context, taskID int64, workflowID uuid.UUID) *Result {
	start := e.now()
	log := e.log.With().Int64("task_id", taskID).Stringer("workflow_id", workflowID).Logger()

	if err := e.limiter.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("firing dropped by rate limiter")
		return &Result{Error: fmt.Errorf("%w: %v", ErrThrottled, err)}
	}

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return &Result{Error: fmt.Errorf("failed to load task: %w", err)}
	}

	run := &db.Run{
		TaskID:     taskID,
		WorkflowID: workflowID,
		StartedAt:  start.UTC(),
		Status:     db.RunStatusRunning,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return &Result{Error: fmt.Errorf("failed to create run record: %w", err)}
	}
	e.publish(stream.EventRunStarted, run)

	var runErr error
	if e.dispatcher != nil {
		runErr = e.dispatcher.Dispatch(ctx, webhook.Dispatch{
			RunID:      run.ID,
			TaskID:     taskID,
			WorkflowID: workflowID,
			FiredAt:    run.StartedAt,
		})
	} else {
		log.Info().Int64("run_id", run.ID).Msg("no engine endpoint configured, run recorded only")
	}

	// the run is finalized even when ctx has expired
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	end := e.now().UTC()
	run.EndedAt = &end
	if runErr != nil {
		run.Status = db.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = db.RunStatusCompleted
	}
	if err := e.store.UpdateRun(finalCtx, run); err != nil {
		log.Error().Err(err).Int64("run_id", run.ID).Msg("failed to finalize run")
	}

	if runErr != nil {
		log.Error().Err(runErr).Int64("run_id", run.ID).Msg("workflow dispatch failed")
	} else {
		log.Info().Int64("run_id", run.ID).Dur("duration", end.Sub(start)).Msg("workflow dispatched")
	}

	e.publish(stream.EventRunFinished, run)
	e.notify(finalCtx, task.Name, run)

	return &Result{Run: run, Duration: end.Sub(start), Error: runErr}
}

// ExecuteAsync runs a workflow in the background with timeout
func (e *Executor) ExecuteAsync(taskID int64, workflowID uuid.UUID, timeout time.Duration) <-chan *Result {
	ch := make(chan *Result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ch <- e.Execute(ctx, taskID, workflowID)
		close(ch)
	}()
	return ch
}

// notify sends chat notifications for failed runs, or all runs when NotifyAlways is set
func (e *Executor) notify(ctx context.Context, taskName string, run *db.Run) {
	if run.Status != db.RunStatusFailed && !e.cfg.NotifyAlways {
		return
	}
	n := webhook.Notice{TaskName: taskName, Run: run}
	if e.cfg.SlackWebhook != "" {
		if err := e.slack.SendRunResult(ctx, e.cfg.SlackWebhook, n); err != nil {
			e.log.Warn().Err(err).Msg("slack notification failed")
		}
	}
	if e.cfg.DiscordWebhook != "" {
		if err := e.discord.SendRunResult(ctx, e.cfg.DiscordWebhook, n); err != nil {
			e.log.Warn().Err(err).Msg("discord notification failed")
		}
	}
}
