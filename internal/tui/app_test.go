package tui

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/executor"
	"github.com/ev1stensberg/walkoff/internal/scheduler"
	"github.com/ev1stensberg/walkoff/internal/service"
	"github.com/ev1stensberg/walkoff/internal/task"
	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu    sync.Mutex
	fired []uuid.UUID
}

func (r *recordingRunner) ExecuteAsync(taskID int64, workflowID uuid.UUID, timeout time.Duration) <-chan *executor.Result {
	r.mu.Lock()
	r.fired = append(r.fired, workflowID)
	r.mu.Unlock()
	ch := make(chan *executor.Result, 1)
	close(ch)
	return ch
}

func newModel(t *testing.T, client bool) (Model, *service.Service, *recordingRunner) {
	t.Helper()
	database, err := db.Open(context.Background(), db.Config{
		Driver: db.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "walkoff.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sched := scheduler.New(scheduler.Options{Location: time.UTC, Logger: zerolog.Nop()})
	exec := scheduler.ExecutorFunc(func(context.Context, int64, uuid.UUID) error { return nil })
	svc := service.New(database, sched, exec, zerolog.Nop())
	runner := &recordingRunner{}

	var next NextRuns = sched
	if client {
		next = nil
	}
	return NewModel(context.Background(), svc, next, runner), svc, runner
}

// step feeds msg to the model and runs the returned command once
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

// press feeds msg to the model without running commands
func press(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func load(t *testing.T, m Model) Model {
	t.Helper()
	return press(m, m.loadTasks()())
}

func cronSpec(expr string) *trigger.Spec {
	return &trigger.Spec{Type: trigger.TypeCron, Args: json.RawMessage(`{"expression":"` + expr + `"}`)}
}

func TestListShowsTasks(t *testing.T) {
	m, svc, _ := newModel(t, false)
	_, err := svc.Create(context.Background(), task.Params{Name: "nightly", Trigger: cronSpec("0 2 * * *"), Workflows: []uuid.UUID{uuid.New()}})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), task.Params{Name: "adhoc"})
	require.NoError(t, err)

	m = load(t, m)
	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "nightly", rows[0][0])
	assert.Equal(t, "running", rows[0][2])
	assert.Equal(t, "1", rows[0][3])
	assert.NotEqual(t, "-", rows[0][4])
	assert.Equal(t, "-", rows[1][1])
	assert.Equal(t, "-", rows[1][4])
}

func TestClientModeDerivesNextRuns(t *testing.T) {
	m, svc, _ := newModel(t, true)
	created, err := svc.Create(context.Background(), task.Params{Name: "nightly", Trigger: cronSpec("0 2 * * *")})
	require.NoError(t, err)

	m = load(t, m)
	next, ok := m.nextRuns[created.ID()]
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
	assert.Zero(t, next.Minute())
}

func TestToggleStopsAndStarts(t *testing.T) {
	m, svc, _ := newModel(t, false)
	created, err := svc.Create(context.Background(), task.Params{Name: "nightly", Trigger: cronSpec("0 2 * * *")})
	require.NoError(t, err)
	m = load(t, m)

	m, msg := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	toggled, ok := msg.(taskToggledMsg)
	require.True(t, ok, "%#v", msg)
	assert.Equal(t, task.StatusStopped, toggled.task.Status())

	got, err := svc.Get(context.Background(), created.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusStopped, got.Status())

	m = load(t, press(m, msg))
	_, msg = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	toggled = msg.(taskToggledMsg)
	assert.Equal(t, task.StatusRunning, toggled.task.Status())
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	m, svc, _ := newModel(t, false)
	created, err := svc.Create(context.Background(), task.Params{Name: "nightly"})
	require.NoError(t, err)
	m = load(t, m)

	m, msg := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Nil(t, msg)
	assert.True(t, m.confirmDelete)

	// enter on the default "No" cancels
	m, msg = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, msg)
	assert.False(t, m.confirmDelete)
	_, err = svc.Get(context.Background(), created.ID())
	require.NoError(t, err)

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	_, msg = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.Equal(t, taskDeletedMsg{id: created.ID()}, msg)
	_, err = svc.Get(context.Background(), created.ID())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestRunFiresEveryWorkflow(t *testing.T) {
	m, svc, runner := newModel(t, false)
	a, b := uuid.New(), uuid.New()
	_, err := svc.Create(context.Background(), task.Params{Name: "nightly", Workflows: []uuid.UUID{a, b}})
	require.NoError(t, err)
	m = load(t, m)

	_, msg := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, taskFiredMsg{name: "nightly", count: 2}, msg)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, runner.fired)
}

func TestFormParams(t *testing.T) {
	m, _, _ := newModel(t, false)
	wf := uuid.New()

	m.formInputs[fieldName].SetValue("hourly")
	m.formInputs[fieldTriggerType].SetValue("interval")
	m.formInputs[fieldTriggerArgs].SetValue(`{"hours":1}`)
	m.formInputs[fieldWorkflows].SetValue(" " + wf.String() + " , ")

	p, err := m.formParams()
	require.NoError(t, err)
	assert.Equal(t, "hourly", p.Name)
	assert.Equal(t, trigger.TypeInterval, p.Trigger.Type)
	assert.JSONEq(t, `{"hours":1}`, string(p.Trigger.Args))
	assert.Equal(t, []uuid.UUID{wf}, p.Workflows)

	m.formInputs[fieldWorkflows].SetValue("not-a-uuid")
	_, err = m.formParams()
	assert.ErrorContains(t, err, "invalid workflow id")

	m.formInputs[fieldWorkflows].SetValue("")
	m.formInputs[fieldTriggerType].SetValue("weekly")
	_, err = m.formParams()
	assert.Error(t, err)

	m.formInputs[fieldName].SetValue("  ")
	_, err = m.formParams()
	assert.ErrorContains(t, err, "name is required")
}

func TestSearchFiltersTasks(t *testing.T) {
	m, svc, _ := newModel(t, false)
	for _, name := range []string{"nightly-report", "hourly-sync", "nightly-backup"} {
		_, err := svc.Create(context.Background(), task.Params{Name: name})
		require.NoError(t, err)
	}
	m = load(t, m)

	m = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	for _, r := range "night" {
		m = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Len(t, m.getDisplayTasks(), 2)
	assert.Len(t, m.table.Rows(), 2)

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.getDisplayTasks(), 3)
}
