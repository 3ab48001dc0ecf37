package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "data", "walkoff.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTask(name string, workflows ...uuid.UUID) *Task {
	return &Task{
		Name:        name,
		Status:      "running",
		TriggerType: "cron",
		TriggerArgs: `{"expression":"0 * * * *"}`,
		Workflows:   workflows,
	}
}

func TestTaskRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	task := newTask("hourly", b, a, b)
	require.NoError(t, db.CreateTask(ctx, task))
	require.NotZero(t, task.ID)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "hourly", got.Name)
	assert.Equal(t, "cron", got.TriggerType)
	assert.JSONEq(t, `{"expression":"0 * * * *"}`, got.TriggerArgs)
	assert.Equal(t, []uuid.UUID{b, a}, got.Workflows)
	assert.WithinDuration(t, task.CreatedAt, got.CreatedAt, time.Second)

	got.Name = "renamed"
	got.Status = "stopped"
	got.Workflows = []uuid.UUID{a}
	require.NoError(t, db.SaveTask(ctx, got))

	again, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", again.Name)
	assert.Equal(t, "stopped", again.Status)
	assert.Equal(t, []uuid.UUID{a}, again.Workflows)
}

func TestListTasks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	shared := uuid.New()

	first := newTask("first", shared)
	second := newTask("second")
	second.TriggerType, second.TriggerArgs = "unspecified", ""
	third := newTask("third", uuid.New(), shared)
	for _, task := range []*Task{first, second, third} {
		require.NoError(t, db.CreateTask(ctx, task))
	}

	tasks, err := db.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{tasks[0].Name, tasks[1].Name, tasks[2].Name})
	assert.Equal(t, []uuid.UUID{shared}, tasks[0].Workflows)
	assert.Empty(t, tasks[1].Workflows)
	assert.Equal(t, "{}", tasks[1].TriggerArgs)
	assert.Equal(t, third.Workflows, tasks[2].Workflows)
}

func TestNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetTask(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.SaveTask(ctx, &Task{ID: 42, Name: "x", Status: "running", TriggerType: "unspecified"}), ErrNotFound)
	assert.ErrorIs(t, db.DeleteTask(ctx, 42), ErrNotFound)

	_, err = db.GetRun(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	wf := uuid.New()

	task := newTask("doomed", wf)
	require.NoError(t, db.CreateTask(ctx, task))
	require.NoError(t, db.CreateRun(ctx, &Run{TaskID: task.ID, WorkflowID: wf}))

	require.NoError(t, db.DeleteTask(ctx, task.ID))

	ids, err := db.LoadWorkflowIDs(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	runs, err := db.ListRuns(ctx, task.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCheckConstraintIsStoreError(t *testing.T) {
	db := openTestDB(t)

	task := newTask("bad")
	task.Status = "paused"
	err := db.CreateTask(context.Background(), task)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "create task", serr.Op)
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.CreateTask(ctx, newTask("ghost", uuid.New())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tasks, err := db.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.Panics(t, func() {
		_ = db.WithTx(ctx, func(tx *Tx) error {
			_ = tx.CreateTask(ctx, newTask("ghost"))
			panic("boom")
		})
	})
	tasks, err = db.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestWithTxCommits(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	wf := uuid.New()

	var id int64
	require.NoError(t, db.WithTx(ctx, func(tx *Tx) error {
		task := newTask("kept")
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		id = task.ID
		return tx.ReplaceWorkflowIDs(ctx, id, []uuid.UUID{wf})
	}))

	got, err := db.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{wf}, got.Workflows)
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	wf := uuid.New()

	task := newTask("runner", wf)
	require.NoError(t, db.CreateTask(ctx, task))

	base := time.Now().UTC().Add(-time.Hour)
	older := &Run{TaskID: task.ID, WorkflowID: wf, StartedAt: base, Status: RunStatusRunning}
	newer := &Run{TaskID: task.ID, WorkflowID: wf, StartedAt: base.Add(time.Minute), Status: RunStatusRunning}
	require.NoError(t, db.CreateRun(ctx, older))
	require.NoError(t, db.CreateRun(ctx, newer))

	ended := base.Add(2 * time.Minute)
	newer.EndedAt = &ended
	newer.Status = RunStatusCompleted
	require.NoError(t, db.UpdateRun(ctx, newer))

	runs, err := db.ListRuns(ctx, task.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.Equal(t, wf, runs[0].WorkflowID)
	require.NotNil(t, runs[0].EndedAt)

	statuses, err := db.LastRunStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, statuses[task.ID])

	n, err := db.MarkStaleRunsAsFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err := db.GetRun(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, stale.Status)
	assert.NotEmpty(t, stale.Error)
}

func TestRebind(t *testing.T) {
	q := queries{dialect: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", q.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	q.dialect = DriverSQLite
	assert.Equal(t, "a = ?", q.rebind("a = ?"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, zerolog.Nop())
	assert.Error(t, err)
}
