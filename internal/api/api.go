package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/executor"
	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/stream"
	"github.com/ev1stensberg/walkoff/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tasks is the task service behind the API
type Tasks interface {
	Create(ctx context.Context, p task.Params) (*task.Task, error)
	Get(ctx context.Context, id int64) (*task.Task, error)
	List(ctx context.Context) ([]*task.Task, error)
	Update(ctx context.Context, id int64, cs task.ChangeSet) (*task.Task, error)
	Start(ctx context.Context, id int64) (*task.Task, error)
	Stop(ctx context.Context, id int64) (*task.Task, error)
	Delete(ctx context.Context, id int64) error
	Runs(ctx context.Context, id int64, limit int) ([]*db.Run, error)
	LastRunStatuses(ctx context.Context) (map[int64]db.RunStatus, error)
}

// Jobs exposes the live scheduler registry
type Jobs interface {
	Snapshot() []scheduler.Job
	NextRun(taskID int64) *time.Time
}

// Runner fires a workflow outside of its schedule
type Runner interface {
	ExecuteAsync(taskID int64, workflowID uuid.UUID, timeout time.Duration) <-chan *executor.Result
}

// Server represents the API server
type Server struct {
	tasks      Tasks
	jobs       Jobs
	runner     Runner
	streams    *stream.Manager
	runTimeout time.Duration
	log        zerolog.Logger
	router     chi.Router
}

// NewServer creates a new API server
func NewServer(tasks Tasks, jobs Jobs, runner Runner, log zerolog.Logger) *Server {
	s := &Server{
		tasks:      tasks,
		jobs:       jobs,
		runner:     runner,
		runTimeout: 30 * time.Minute,
		log:        log.With().Str("component", "api").Logger(),
		router:     chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// SetRunTimeout bounds workflows fired through the run endpoint
func (s *Server) SetRunTimeout(d time.Duration) {
	if d > 0 {
		s.runTimeout = d
	}
}

// SetStreamManager enables the run event stream endpoint
func (s *Server) SetStreamManager(m *stream.Manager) {
	s.streams = m
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Get("/api/v1/health", s.HealthCheck)

	r.Get("/api/v1/scheduledtasks", s.ListTasks)
	r.Post("/api/v1/scheduledtasks", s.CreateTask)
	r.Get("/api/v1/scheduledtasks/{id}", s.GetTask)
	r.Patch("/api/v1/scheduledtasks/{id}", s.UpdateTask)
	r.Put("/api/v1/scheduledtasks/{id}", s.UpdateTask)
	r.Delete("/api/v1/scheduledtasks/{id}", s.DeleteTask)
	r.Post("/api/v1/scheduledtasks/{id}/start", s.StartTask)
	r.Post("/api/v1/scheduledtasks/{id}/stop", s.StopTask)
	r.Post("/api/v1/scheduledtasks/{id}/run", s.RunTask)
	r.Get("/api/v1/scheduledtasks/{id}/runs", s.GetTaskRuns)
	r.Get("/api/v1/scheduledtasks/{id}/events", s.StreamTaskEvents)

	r.Get("/api/v1/scheduler/jobs", s.ListJobs)
}

// Router returns the chi router for use with http.Server
func (s *Server) Router() http.Handler {
	return s.router
}
