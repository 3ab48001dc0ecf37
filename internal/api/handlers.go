package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/stream"
	"github.com/ev1stensberg/walkoff/internal/task"
	"github.com/ev1stensberg/walkoff/internal/version"
	"github.com/go-chi/chi/v5"
)

// HealthCheck handles GET /api/v1/health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Version,
	})
}

// ListTasks handles GET /api/v1/scheduledtasks
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		s.serviceError(w, "Failed to fetch tasks", err)
		return
	}

	statuses, err := s.tasks.LastRunStatuses(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load last run statuses")
	}

	response := TaskListResponse{
		Tasks: make([]TaskResponse, len(tasks)),
		Total: len(tasks),
	}
	for i, t := range tasks {
		response.Tasks[i] = s.taskToResponse(t, statuses[t.ID()])
	}

	s.jsonResponse(w, http.StatusOK, response)
}

// CreateTask handles POST /api/v1/scheduledtasks
func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body", "invalid_body", err)
		return
	}

	t, err := s.tasks.Create(r.Context(), task.Params{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Workflows:   req.Workflows,
		Trigger:     req.TaskTrigger,
	})
	if err != nil {
		s.serviceError(w, "Failed to create task", err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, s.taskToResponse(t, ""))
}

// GetTask handles GET /api/v1/scheduledtasks/{id}
func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, "Failed to fetch task", err)
		return
	}

	var status db.RunStatus
	if runs, err := s.tasks.Runs(r.Context(), id, 1); err == nil && len(runs) > 0 {
		status = runs[0].Status
	}

	s.jsonResponse(w, http.StatusOK, s.taskToResponse(t, status))
}

// UpdateTask handles PATCH and PUT /api/v1/scheduledtasks/{id}. Absent fields are left untouched.
func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	var cs task.ChangeSet
	if err := json.NewDecoder(r.Body).Decode(&cs); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body", "invalid_body", err)
		return
	}

	t, err := s.tasks.Update(r.Context(), id, cs)
	if err != nil {
		s.serviceError(w, "Failed to update task", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, s.taskToResponse(t, ""))
}

// DeleteTask handles DELETE /api/v1/scheduledtasks/{id}
func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.serviceError(w, "Failed to delete task", err)
		return
	}
	if s.streams != nil {
		s.streams.Forget(id)
	}

	s.jsonResponse(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Task deleted",
	})
}

// StartTask handles POST /api/v1/scheduledtasks/{id}/start
func (s *Server) StartTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Start(r.Context(), id)
	if err != nil {
		s.serviceError(w, "Failed to start task", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.taskToResponse(t, ""))
}

// StopTask handles POST /api/v1/scheduledtasks/{id}/stop
func (s *Server) StopTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Stop(r.Context(), id)
	if err != nil {
		s.serviceError(w, "Failed to stop task", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.taskToResponse(t, ""))
}

// RunTask handles POST /api/v1/scheduledtasks/{id}/run
func (s *Server) RunTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, "Failed to fetch task", err)
		return
	}

	workflows := t.Workflows()
	if len(workflows) == 0 {
		s.errorResponse(w, http.StatusConflict, "Task has no workflows", "no_workflows", nil)
		return
	}

	// results are recorded as runs; the buffered channels are dropped
	for _, wf := range workflows {
		s.runner.ExecuteAsync(id, wf, s.runTimeout)
	}

	s.jsonResponse(w, http.StatusAccepted, RunStartedResponse{
		TaskID:    id,
		Workflows: workflows,
		Message:   "Workflow execution started",
	})
}

// GetTaskRuns handles GET /api/v1/scheduledtasks/{id}/runs
func (s *Server) GetTaskRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := s.tasks.Runs(r.Context(), id, limit)
	if err != nil {
		s.serviceError(w, "Failed to fetch runs", err)
		return
	}

	response := RunsResponse{
		Runs:  make([]RunResponse, len(runs)),
		Total: len(runs),
	}
	for i, run := range runs {
		response.Runs[i] = runToResponse(run)
	}

	s.jsonResponse(w, http.StatusOK, response)
}

const keepaliveInterval = 15 * time.Second

// StreamTaskEvents handles GET /api/v1/scheduledtasks/{id}/events as server-sent events
func (s *Server) StreamTaskEvents(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Event streaming is not enabled", "streaming_disabled", nil)
		return
	}
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if _, err := s.tasks.Get(r.Context(), id); err != nil {
		s.serviceError(w, "Failed to fetch task", err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("response does not support flushing")
		return
	}

	sub := s.streams.Subscribe(id)
	defer s.streams.Unsubscribe(sub)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.Done:
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case ev := <-sub.Events:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// ListJobs handles GET /api/v1/scheduler/jobs
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.Snapshot()
	if jobs == nil {
		jobs = []scheduler.Job{}
	}
	s.jsonResponse(w, http.StatusOK, JobsResponse{Jobs: jobs, Total: len(jobs)})
}

// Helper functions

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "Invalid task ID", "invalid_id", err)
		return 0, false
	}
	return id, true
}

func (s *Server) taskToResponse(t *task.Task, status db.RunStatus) TaskResponse {
	return TaskResponse{
		JSON:          t.JSON(),
		NextRunAt:     s.jobs.NextRun(t.ID()),
		LastRunStatus: string(status),
	}
}

func runToResponse(run *db.Run) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		TaskID:     run.TaskID,
		WorkflowID: run.WorkflowID,
		StartedAt:  run.StartedAt,
		EndedAt:    run.EndedAt,
		Status:     string(run.Status),
		Error:      run.Error,
	}
	if run.EndedAt != nil {
		durationMs := run.EndedAt.Sub(run.StartedAt).Milliseconds()
		resp.DurationMs = &durationMs
	}
	return resp
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if err != nil {
		resp.Details = err.Error()
	}
	s.jsonResponse(w, status, resp)
}

// serviceError maps service errors onto HTTP statuses
func (s *Server) serviceError(w http.ResponseWriter, message string, err error) {
	var (
		verr  *task.ValidationError
		serr  *task.SchedulerError
		dberr *db.StoreError
	)
	switch {
	case errors.As(err, &verr):
		s.errorResponse(w, http.StatusBadRequest, verr.Error(), "validation_failed", nil)
	case errors.Is(err, db.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, "Task not found", "not_found", nil)
	case errors.As(err, &serr):
		s.log.Error().Err(err).Int64("task_id", serr.TaskID).Msg(message)
		s.errorResponse(w, http.StatusInternalServerError, message, "scheduler_error", err)
	case errors.As(err, &dberr):
		s.log.Error().Err(err).Msg(message)
		s.errorResponse(w, http.StatusInternalServerError, message, "store_error", err)
	default:
		s.log.Error().Err(err).Msg(message)
		s.errorResponse(w, http.StatusInternalServerError, message, "internal", err)
	}
}
