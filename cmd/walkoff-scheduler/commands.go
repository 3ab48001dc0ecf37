package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ev1stensberg/walkoff/internal/api"
	"github.com/ev1stensberg/walkoff/internal/tui"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	streamMaxAge    = time.Hour
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveAction(c *cli.Context) error {
	cfg, log, err := loadConfig(configPath(c))
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.svc.Boot(ctx); err != nil {
		return fmt.Errorf("booting scheduler: %w", err)
	}
	st.sched.Start()

	server := api.NewServer(st.svc, st.sched, st.exec, log)
	server.SetRunTimeout(cfg.Scheduler.JobTimeout)
	server.SetStreamManager(st.hub)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// event streams never finish on their own
	srv.RegisterOnShutdown(st.hub.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Str("database", cfg.Database.Driver).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return st.svc.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(streamMaxAge / 4)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st.hub.CleanupOldStreams(streamMaxAge)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stopScheduler(st.sched.Stop, log)
	return err
}

func daemonAction(c *cli.Context) error {
	cfg, log, err := loadConfig(configPath(c))
	if err != nil {
		return err
	}

	if pid, running := daemonRunning(cfg.DataDir); running {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}
	if err := writePidFile(cfg.DataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePidFile(cfg.DataDir)

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.svc.Boot(ctx); err != nil {
		return fmt.Errorf("booting scheduler: %w", err)
	}
	st.sched.Start()
	log.Info().Int("pid", os.Getpid()).Str("database", cfg.Database.Driver).Msg("daemon started")

	err = st.svc.Run(ctx)
	stopScheduler(st.sched.Stop, log)
	return err
}

// tuiAction runs the TUI. When a daemon owns the data directory the TUI only
// edits the store and the daemon's sync loop applies the changes.
func tuiAction(c *cli.Context) error {
	cfg, _, err := loadConfig(configPath(c))
	if err != nil {
		return err
	}
	// the alt screen owns the terminal; keep logs out of it
	log := zerolog.Nop()

	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if pid, running := daemonRunning(cfg.DataDir); running {
		fmt.Printf("Daemon running (PID %d), TUI in client mode\n", pid)
		return tui.Run(ctx, st.svc, nil, st.exec)
	}

	if err := st.svc.Boot(ctx); err != nil {
		return fmt.Errorf("booting scheduler: %w", err)
	}
	st.sched.Start()
	defer stopScheduler(st.sched.Stop, log)

	return tui.Run(ctx, st.svc, st.sched, st.exec)
}

func stopScheduler(stop func(context.Context) error, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Warn().Err(err).Msg("scheduler did not stop cleanly")
	}
}
