package main

import (
	"context"
	"fmt"

	"github.com/ev1stensberg/walkoff/internal/config"
	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/executor"
	"github.com/ev1stensberg/walkoff/internal/logging"
	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/service"
	"github.com/ev1stensberg/walkoff/internal/stream"
	"github.com/rs/zerolog"
)

// stack is the wired set of components every command runs on
type stack struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *db.DB
	sched *scheduler.Scheduler
	exec  *executor.Executor
	svc   *service.Service
	hub   *stream.Manager
}

func openStack(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stack, error) {
	database, err := db.Open(ctx, db.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	sched := scheduler.New(scheduler.Options{
		Location:   cfg.Location(),
		JobTimeout: cfg.Scheduler.JobTimeout,
		Logger:     log,
	})

	exec := executor.New(database, executor.Config{
		Endpoint:       cfg.Executor.Endpoint,
		Token:          cfg.Executor.Token,
		RateLimit:      cfg.Executor.RateLimit,
		Burst:          cfg.Executor.Burst,
		SlackWebhook:   cfg.Executor.SlackWebhook,
		DiscordWebhook: cfg.Executor.DiscordWebhook,
		NotifyAlways:   cfg.Executor.NotifyAlways,
	}, log)
	hub := stream.NewManager()
	exec.SetPublisher(hub)

	svc := service.New(database, sched, exec, log,
		service.WithSyncInterval(cfg.Scheduler.SyncInterval),
	)

	return &stack{
		cfg:   cfg,
		log:   log,
		db:    database,
		sched: sched,
		exec:  exec,
		svc:   svc,
		hub:   hub,
	}, nil
}

func (s *stack) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing database")
	}
}

func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
	})
	return cfg, log, nil
}
