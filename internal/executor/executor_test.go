package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*db.DB, *db.Task) {
	t.Helper()
	ctx := context.Background()
	database, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(t.TempDir(), "walkoff.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	task := &db.Task{Name: "nightly", Status: "running", TriggerType: "interval", TriggerArgs: `{"minutes":5}`}
	require.NoError(t, database.CreateTask(ctx, task))
	return database, task
}

func TestExecuteDryRun(t *testing.T) {
	database, task := setup(t)
	e := New(database, Config{}, zerolog.Nop())
	wf := uuid.New()

	res := e.Execute(context.Background(), task.ID, wf)
	require.NoError(t, res.Error)
	require.NotNil(t, res.Run)

	runs, err := database.ListRuns(context.Background(), task.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, wf, runs[0].WorkflowID)
	assert.NotNil(t, runs[0].EndedAt)
}

func TestExecuteDispatchesToEngine(t *testing.T) {
	database, task := setup(t)
	wf := uuid.New()

	var body map[string]any
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer engine.Close()

	e := New(database, Config{Endpoint: engine.URL}, zerolog.Nop())
	require.NoError(t, e.ExecuteWorkflow(context.Background(), task.ID, wf))

	assert.Equal(t, wf.String(), body["workflow_id"])
	assert.EqualValues(t, task.ID, body["task_id"])
	assert.NotZero(t, body["run_id"])
}

func TestExecuteFailureNotifiesSlack(t *testing.T) {
	database, task := setup(t)

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer engine.Close()

	var notified atomic.Int32
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notified.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer slack.Close()

	e := New(database, Config{Endpoint: engine.URL, SlackWebhook: slack.URL}, zerolog.Nop())
	res := e.Execute(context.Background(), task.ID, uuid.New())
	require.Error(t, res.Error)
	assert.Equal(t, db.RunStatusFailed, res.Run.Status)
	assert.Contains(t, res.Run.Error, "502")
	assert.Equal(t, int32(1), notified.Load())

	stored, err := database.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusFailed, stored.Status)
}

func TestExecuteSuccessIsQuietByDefault(t *testing.T) {
	database, task := setup(t)

	var notified atomic.Int32
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notified.Add(1)
	}))
	defer slack.Close()

	e := New(database, Config{SlackWebhook: slack.URL}, zerolog.Nop())
	require.NoError(t, e.ExecuteWorkflow(context.Background(), task.ID, uuid.New()))
	assert.Zero(t, notified.Load())

	e = New(database, Config{SlackWebhook: slack.URL, NotifyAlways: true}, zerolog.Nop())
	require.NoError(t, e.ExecuteWorkflow(context.Background(), task.ID, uuid.New()))
	assert.Equal(t, int32(1), notified.Load())
}

func TestExecuteMissingTask(t *testing.T) {
	database, _ := setup(t)
	e := New(database, Config{}, zerolog.Nop())

	err := e.ExecuteWorkflow(context.Background(), 404, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)

	runs, err := database.ListRuns(context.Background(), 404, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExecuteThrottled(t *testing.T) {
	database, task := setup(t)
	e := New(database, Config{RateLimit: 0.01, Burst: 1}, zerolog.Nop())

	require.NoError(t, e.ExecuteWorkflow(context.Background(), task.ID, uuid.New()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.ExecuteWorkflow(ctx, task.ID, uuid.New()), ErrThrottled)
}

func TestExecuteAsync(t *testing.T) {
	database, task := setup(t)
	e := New(database, Config{}, zerolog.Nop())

	select {
	case res := <-e.ExecuteAsync(task.ID, uuid.New(), time.Minute):
		require.NoError(t, res.Error)
		assert.Equal(t, db.RunStatusCompleted, res.Run.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("async execution did not finish")
	}
}

func TestExecutePublishesRunEvents(t *testing.T) {
	database, task := setup(t)
	hub := stream.NewManager()
	sub := hub.Subscribe(task.ID)
	defer hub.Unsubscribe(sub)

	e := New(database, Config{}, zerolog.Nop())
	e.SetPublisher(hub)
	wf := uuid.New()
	res := e.Execute(context.Background(), task.ID, wf)
	require.NoError(t, res.Error)

	require.Len(t, sub.Events, 2)
	started := <-sub.Events
	assert.Equal(t, stream.EventRunStarted, started.Type)
	assert.Equal(t, "running", started.Status)
	assert.Equal(t, res.Run.ID, started.RunID)

	finished := <-sub.Events
	assert.Equal(t, stream.EventRunFinished, finished.Type)
	assert.Equal(t, "completed", finished.Status)
	assert.Equal(t, wf, finished.WorkflowID)
}
