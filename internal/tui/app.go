package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/ev1stensberg/walkoff/internal/db"
	"github.com/ev1stensberg/walkoff/internal/executor"
	"github.com/ev1stensberg/walkoff/internal/task"
	"github.com/ev1stensberg/walkoff/internal/trigger"
	"github.com/google/uuid"
)

// View represents the current view
type View int

const (
	ViewList View = iota
	ViewAdd
	ViewDetail
)

// Backend is the task service the TUI drives
type Backend interface {
	Create(ctx context.Context, p task.Params) (*task.Task, error)
	List(ctx context.Context) ([]*task.Task, error)
	Start(ctx context.Context, id int64) (*task.Task, error)
	Stop(ctx context.Context, id int64) (*task.Task, error)
	Delete(ctx context.Context, id int64) error
	Runs(ctx context.Context, id int64, limit int) ([]*db.Run, error)
	LastRunStatuses(ctx context.Context) (map[int64]db.RunStatus, error)
}

// NextRuns reports upcoming firings from a live scheduler
type NextRuns interface {
	NextRuns() map[int64]time.Time
}

// Runner fires a workflow immediately
type Runner interface {
	ExecuteAsync(taskID int64, workflowID uuid.UUID, timeout time.Duration) <-chan *executor.Result
}

// KeyMap defines keybindings
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Add    key.Binding
	Delete key.Binding
	Toggle key.Binding
	Run    key.Binding
	Enter  key.Binding
	Save   key.Binding
	Back   key.Binding
	Quit   key.Binding
	Tab    key.Binding
	Help   key.Binding
}

var keys = KeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Toggle: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "start/stop")),
	Run:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run now")),
	Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Delete, k.Toggle, k.Run, k.Enter, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Add, k.Delete, k.Toggle},
		{k.Run, k.Help, k.Quit},
	}
}

// Form field indices
const (
	fieldName = iota
	fieldDescription
	fieldTriggerType
	fieldTriggerArgs
	fieldWorkflows
	fieldCount
)

// Layout constants
const (
	minWidth       = 60
	maxTableWidth  = 140
	headerHeight   = 3
	footerHeight   = 4
	minTableHeight = 5
	runTimeout     = 30 * time.Minute
	refreshEvery   = 2 * time.Second
)

// Model is the main TUI model
type Model struct {
	ctx      context.Context
	backend  Backend
	schedule NextRuns
	runner   Runner
	client   bool

	currentView View
	width       int
	height      int

	tasks           []*task.Task
	table           table.Model
	nextRuns        map[int64]time.Time
	lastRunStatuses map[int64]db.RunStatus

	confirmDelete      bool
	deleteTaskID       int64
	deleteTaskName     string
	deleteConfirmFocus int // 0 = Yes, 1 = No

	searchMode    bool
	searchInput   textinput.Model
	filteredTasks []*task.Task

	help     help.Model
	showHelp bool

	formInputs []textinput.Model
	formFocus  int
	formErr    string

	selectedTask *task.Task
	runs         []*db.Run
	viewport     viewport.Model
	mdRenderer   *glamour.TermRenderer

	statusMsg   string
	statusErr   bool
	statusTimer int
}

func calculateTableColumns(width int) []table.Column {
	availableWidth := width - 4
	if availableWidth < minWidth {
		availableWidth = minWidth
	}
	if availableWidth > maxTableWidth {
		availableWidth = maxTableWidth
	}

	statusWidth := 12
	flowsWidth := 9
	remaining := availableWidth - statusWidth - flowsWidth - 10

	nameWidth := remaining * 35 / 100
	triggerWidth := remaining * 40 / 100
	nextWidth := remaining - nameWidth - triggerWidth

	if nameWidth < 12 {
		nameWidth = 12
	}
	if triggerWidth < 16 {
		triggerWidth = 16
	}
	if nextWidth < 14 {
		nextWidth = 14
	}

	return []table.Column{
		{Title: "Name", Width: nameWidth},
		{Title: "Trigger", Width: triggerWidth},
		{Title: "Status", Width: statusWidth},
		{Title: "Workflows", Width: flowsWidth},
		{Title: "Next Run", Width: nextWidth},
	}
}

// NewModel creates a new TUI model. schedule may be nil when another process
// owns the scheduler; next runs are then derived from each task's trigger.
func NewModel(ctx context.Context, backend Backend, schedule NextRuns, runner Runner) Model {
	h := help.New()
	h.Styles.ShortKey = helpKeyStyle
	h.Styles.ShortDesc = helpDescStyle

	t := table.New(
		table.WithColumns(calculateTableColumns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimTextColor).
		BorderBottom(true).
		Bold(true).
		Foreground(accentColor)
	ts.Selected = ts.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor).
		Bold(true)
	t.SetStyles(ts)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	searchInput := textinput.New()
	searchInput.Placeholder = "Search tasks..."
	searchInput.CharLimit = 100
	searchInput.Width = 30

	m := Model{
		ctx:                ctx,
		backend:            backend,
		schedule:           schedule,
		runner:             runner,
		client:             schedule == nil,
		help:               h,
		table:              t,
		nextRuns:           make(map[int64]time.Time),
		lastRunStatuses:    make(map[int64]db.RunStatus),
		searchInput:        searchInput,
		viewport:           viewport.New(80, 20),
		mdRenderer:         renderer,
		deleteConfirmFocus: 1,
	}
	m.initFormInputs()
	return m
}

func (m *Model) initFormInputs() {
	m.formInputs = make([]textinput.Model, fieldCount)
	placeholders := [fieldCount]string{
		fieldName:        "nightly-report",
		fieldDescription: "Optional description",
		fieldTriggerType: "cron | interval | date | unspecified",
		fieldTriggerArgs: `{"hour": 2, "minute": 30}`,
		fieldWorkflows:   "comma separated workflow ids",
	}
	for i := range m.formInputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 512
		in.Width = 60
		m.formInputs[i] = in
	}
	m.formInputs[fieldTriggerType].SetValue(string(trigger.TypeCron))
	m.formFocus = fieldName
	m.formErr = ""
}

func (m *Model) focusFormField(field int) {
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	m.formFocus = field
	m.formInputs[field].Focus()
}

func (m *Model) refreshNextRuns() {
	if m.schedule != nil {
		m.nextRuns = m.schedule.NextRuns()
		return
	}
	now := time.Now()
	next := make(map[int64]time.Time, len(m.tasks))
	for _, t := range m.tasks {
		if !t.Active() {
			continue
		}
		if at := t.Trigger().Schedule().Next(now); !at.IsZero() {
			next[t.ID()] = at
		}
	}
	m.nextRuns = next
}

func (m *Model) updateTable() {
	tasksToShow := m.getDisplayTasks()
	if len(tasksToShow) == 0 {
		m.table.SetRows([]table.Row{})
		return
	}

	columns := m.table.Columns()
	nameWidth, triggerWidth := 18, 18
	if len(columns) >= 2 {
		nameWidth = columns[0].Width - 2
		triggerWidth = columns[1].Width - 2
	}

	rows := make([]table.Row, len(tasksToShow))
	for i, t := range tasksToShow {
		var statusParts []string
		switch m.lastRunStatuses[t.ID()] {
		case db.RunStatusCompleted:
			statusParts = append(statusParts, "✓")
		case db.RunStatusFailed:
			statusParts = append(statusParts, "✗")
		case db.RunStatusRunning:
			statusParts = append(statusParts, "●")
		}
		statusParts = append(statusParts, string(t.Status()))

		nextRun := "-"
		if next, ok := m.nextRuns[t.ID()]; ok {
			nextRun = formatTime(next)
		}

		rows[i] = table.Row{
			truncate(t.Name(), nameWidth),
			truncate(describeTrigger(t.Trigger()), triggerWidth),
			strings.Join(statusParts, " "),
			fmt.Sprintf("%d", len(t.Workflows())),
			nextRun,
		}
	}
	m.table.SetRows(rows)
}

func describeTrigger(trig *trigger.Trigger) string {
	if trig.IsUnspecified() {
		return "-"
	}
	spec := trig.Spec()
	return fmt.Sprintf("%s %s", spec.Type, spec.Args)
}

func formatTime(t time.Time) string {
	now := time.Now()
	if t.Before(now) {
		return t.Format("Jan 02 15:04")
	}

	diff := t.Sub(now)
	if diff < time.Minute {
		return fmt.Sprintf("in %ds", int(diff.Seconds()))
	}
	if diff < time.Hour {
		return fmt.Sprintf("in %dm", int(diff.Minutes()))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("in %dh %dm", int(diff.Hours()), int(diff.Minutes())%60)
	}
	return t.Format("Jan 02 15:04")
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// Messages
type tasksLoadedMsg struct{ tasks []*task.Task }
type taskCreatedMsg struct{ task *task.Task }
type taskDeletedMsg struct{ id int64 }
type taskToggledMsg struct{ task *task.Task }
type taskFiredMsg struct {
	name  string
	count int
}
type runsLoadedMsg struct{ runs []*db.Run }
type lastRunStatusesMsg struct{ statuses map[int64]db.RunStatus }
type errMsg struct{ err error }
type tickMsg time.Time

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadTasks(),
		m.fetchLastRunStatuses(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) loadTasks() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.backend.List(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (m *Model) fetchLastRunStatuses() tea.Cmd {
	return func() tea.Msg {
		statuses, err := m.backend.LastRunStatuses(m.ctx)
		if err != nil {
			return lastRunStatusesMsg{statuses: make(map[int64]db.RunStatus)}
		}
		return lastRunStatusesMsg{statuses: statuses}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.currentView {
		case ViewList:
			return m.updateList(msg)
		case ViewAdd:
			return m.updateForm(msg)
		case ViewDetail:
			return m.updateDetail(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.table.SetColumns(calculateTableColumns(msg.Width))
		tableWidth := msg.Width - 4
		if tableWidth > maxTableWidth {
			tableWidth = maxTableWidth
		}
		m.table.SetWidth(tableWidth)

		availableHeight := msg.Height - headerHeight - footerHeight - 2
		if availableHeight < minTableHeight {
			availableHeight = minTableHeight
		}
		m.table.SetHeight(availableHeight)

		viewportHeight := msg.Height - 8
		if viewportHeight < 5 {
			viewportHeight = 5
		}
		m.viewport.Width = msg.Width - 6
		m.viewport.Height = viewportHeight
		m.help.Width = msg.Width

		if renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-10),
		); err == nil {
			m.mdRenderer = renderer
		}
		m.updateTable()

	case tickMsg:
		if m.statusTimer > 0 {
			m.statusTimer--
			if m.statusTimer == 0 {
				m.statusMsg = ""
			}
		}
		cmds = append(cmds, tickCmd(), m.fetchLastRunStatuses())
		// another process may be editing tasks
		if m.client {
			cmds = append(cmds, m.loadTasks())
		}
		m.refreshNextRuns()
		m.updateTable()

	case tasksLoadedMsg:
		m.tasks = msg.tasks
		if m.searchMode {
			m.filterTasks()
		}
		m.refreshNextRuns()
		m.updateTable()

	case lastRunStatusesMsg:
		m.lastRunStatuses = msg.statuses
		m.updateTable()

	case taskCreatedMsg:
		m.setStatus("Task saved: "+msg.task.Name(), false)
		m.currentView = ViewList
		cmds = append(cmds, m.loadTasks())

	case taskDeletedMsg:
		m.setStatus("Task deleted", false)
		if m.selectedTask != nil && m.selectedTask.ID() == msg.id {
			m.selectedTask = nil
			m.currentView = ViewList
		}
		cmds = append(cmds, m.loadTasks())

	case taskToggledMsg:
		if msg.task.Active() {
			m.setStatus("Task started: "+msg.task.Name(), false)
		} else {
			m.setStatus("Task stopped: "+msg.task.Name(), false)
		}
		if m.selectedTask != nil && m.selectedTask.ID() == msg.task.ID() {
			m.selectedTask = msg.task
			m.viewport.SetContent(m.renderDetailContent())
		}
		cmds = append(cmds, m.loadTasks())

	case taskFiredMsg:
		m.setStatus(fmt.Sprintf("Fired %d workflow(s) of %s", msg.count, msg.name), false)

	case runsLoadedMsg:
		m.runs = msg.runs
		m.viewport.SetContent(m.renderDetailContent())
		m.viewport.GotoTop()

	case errMsg:
		m.setStatus("Error: "+msg.err.Error(), true)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) resetDeleteConfirm() {
	m.confirmDelete = false
	m.deleteTaskID = 0
	m.deleteTaskName = ""
	m.deleteConfirmFocus = 1
}

func (m *Model) selected() *task.Task {
	tasksToUse := m.getDisplayTasks()
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(tasksToUse) {
		return nil
	}
	return tasksToUse[idx]
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if m.confirmDelete {
		switch msg.String() {
		case "left", "h":
			m.deleteConfirmFocus = 0
		case "right", "l":
			m.deleteConfirmFocus = 1
		case "tab":
			m.deleteConfirmFocus = (m.deleteConfirmFocus + 1) % 2
		case "y", "Y":
			id := m.deleteTaskID
			m.resetDeleteConfirm()
			return m, m.deleteTask(id)
		case "enter":
			id, confirmed := m.deleteTaskID, m.deleteConfirmFocus == 0
			m.resetDeleteConfirm()
			if confirmed {
				return m, m.deleteTask(id)
			}
		case "n", "N", "esc":
			m.resetDeleteConfirm()
		}
		return m, nil
	}

	if m.searchMode && m.searchInput.Focused() {
		switch msg.String() {
		case "esc":
			m.searchMode = false
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.filteredTasks = nil
			m.updateTable()
			return m, nil
		case "enter":
			m.searchInput.Blur()
			return m, nil
		default:
			m.searchInput, cmd = m.searchInput.Update(msg)
			m.filterTasks()
			m.updateTable()
			return m, cmd
		}
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "/":
		m.searchMode = true
		m.searchInput.Focus()
		return m, textinput.Blink
	case "esc":
		if m.searchMode {
			m.searchMode = false
			m.searchInput.SetValue("")
			m.filteredTasks = nil
			m.updateTable()
		}
		return m, nil
	case "a":
		m.currentView = ViewAdd
		m.initFormInputs()
		m.focusFormField(fieldName)
		return m, textinput.Blink
	case "d":
		if t := m.selected(); t != nil {
			m.confirmDelete = true
			m.deleteTaskID = t.ID()
			m.deleteTaskName = t.Name()
			m.deleteConfirmFocus = 1
		}
		return m, nil
	case "t":
		if t := m.selected(); t != nil {
			return m, m.toggleTask(t)
		}
		return m, nil
	case "r":
		if t := m.selected(); t != nil {
			return m, m.runTask(t)
		}
		return m, nil
	case "enter":
		if t := m.selected(); t != nil {
			m.selectedTask = t
			m.runs = nil
			m.currentView = ViewDetail
			m.viewport.SetContent(m.renderDetailContent())
			return m, m.loadRuns(t.ID())
		}
		return m, nil
	}

	if len(m.getDisplayTasks()) > 0 {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// getDisplayTasks returns the tasks currently being displayed (filtered or all)
func (m *Model) getDisplayTasks() []*task.Task {
	if m.searchMode && m.searchInput.Value() != "" {
		return m.filteredTasks
	}
	return m.tasks
}

// filterTasks matches the search query against name, description and trigger type
func (m *Model) filterTasks() {
	query := strings.ToLower(strings.TrimSpace(m.searchInput.Value()))
	if query == "" {
		m.filteredTasks = m.tasks
		return
	}

	m.filteredTasks = nil
	for _, t := range m.tasks {
		if strings.Contains(strings.ToLower(t.Name()), query) ||
			strings.Contains(strings.ToLower(t.Description()), query) ||
			strings.Contains(string(t.Trigger().Type()), query) {
			m.filteredTasks = append(m.filteredTasks, t)
		}
	}
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.currentView = ViewList
		return m, nil
	case "tab", "down":
		m.focusFormField((m.formFocus + 1) % fieldCount)
		return m, textinput.Blink
	case "shift+tab", "up":
		m.focusFormField((m.formFocus + fieldCount - 1) % fieldCount)
		return m, textinput.Blink
	case "ctrl+s":
		params, err := m.formParams()
		if err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.formErr = ""
		return m, m.saveTask(params)
	}

	var cmd tea.Cmd
	m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
	return m, cmd
}

// formParams turns the form into creation params. Trigger semantics are
// validated by the service; only the shape is checked here.
func (m *Model) formParams() (task.Params, error) {
	name := strings.TrimSpace(m.formInputs[fieldName].Value())
	if name == "" {
		return task.Params{}, fmt.Errorf("name is required")
	}

	p := task.Params{
		Name:        name,
		Description: strings.TrimSpace(m.formInputs[fieldDescription].Value()),
	}

	typ, err := trigger.ParseType(strings.TrimSpace(m.formInputs[fieldTriggerType].Value()))
	if err != nil {
		return task.Params{}, err
	}
	args := strings.TrimSpace(m.formInputs[fieldTriggerArgs].Value())
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return task.Params{}, fmt.Errorf("trigger args must be a JSON object")
	}
	p.Trigger = &trigger.Spec{Type: typ, Args: json.RawMessage(args)}

	workflows, err := parseWorkflows(m.formInputs[fieldWorkflows].Value())
	if err != nil {
		return task.Params{}, err
	}
	p.Workflows = workflows
	return p, nil
}

func parseWorkflows(s string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid workflow id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.currentView = ViewList
		m.selectedTask = nil
		return m, nil
	case "t":
		return m, m.toggleTask(m.selectedTask)
	case "r":
		return m, tea.Batch(m.runTask(m.selectedTask), m.loadRuns(m.selectedTask.ID()))
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) saveTask(p task.Params) tea.Cmd {
	return func() tea.Msg {
		t, err := m.backend.Create(m.ctx, p)
		if err != nil {
			return errMsg{err}
		}
		return taskCreatedMsg{t}
	}
}

func (m *Model) deleteTask(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := m.backend.Delete(m.ctx, id); err != nil {
			return errMsg{err}
		}
		return taskDeletedMsg{id}
	}
}

func (m *Model) toggleTask(t *task.Task) tea.Cmd {
	id, running := t.ID(), t.Status() == task.StatusRunning
	return func() tea.Msg {
		var (
			out *task.Task
			err error
		)
		if running {
			out, err = m.backend.Stop(m.ctx, id)
		} else {
			out, err = m.backend.Start(m.ctx, id)
		}
		if err != nil {
			return errMsg{err}
		}
		return taskToggledMsg{out}
	}
}

func (m *Model) runTask(t *task.Task) tea.Cmd {
	id, name, workflows := t.ID(), t.Name(), t.Workflows()
	return func() tea.Msg {
		if len(workflows) == 0 {
			return errMsg{fmt.Errorf("%s has no workflows", name)}
		}
		for _, wf := range workflows {
			m.runner.ExecuteAsync(id, wf, runTimeout)
		}
		return taskFiredMsg{name: name, count: len(workflows)}
	}
}

func (m *Model) loadRuns(taskID int64) tea.Cmd {
	return func() tea.Msg {
		runs, err := m.backend.Runs(m.ctx, taskID, 20)
		if err != nil {
			return errMsg{err}
		}
		return runsLoadedMsg{runs}
	}
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
	m.statusTimer = 3
}

func (m Model) View() string {
	var content string
	switch m.currentView {
	case ViewList:
		content = m.renderList()
	case ViewAdd:
		content = m.renderForm()
	case ViewDetail:
		content = m.renderDetail()
	}

	baseView := appStyle.Render(content)
	if m.confirmDelete {
		return m.renderDeleteModal()
	}
	return baseView
}

func (m Model) renderDeleteModal() string {
	activeButtonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor).
		Padding(0, 3).
		MarginRight(2).
		Bold(true)
	inactiveButtonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#666666")).
		Padding(0, 3).
		MarginRight(2)

	yesBtn, noBtn := inactiveButtonStyle.Render("Yes"), activeButtonStyle.Render("No")
	if m.deleteConfirmFocus == 0 {
		yesBtn, noBtn = activeButtonStyle.Render("Yes"), inactiveButtonStyle.Render("No")
	}

	question := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Render(fmt.Sprintf("Delete task '%s'?", m.deleteTaskName))

	modal := modalStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		question,
		subtitleStyle.Render("its jobs are unscheduled and its workflow links removed"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center, yesBtn, noBtn),
		"",
		subtitleStyle.Render("←/→ to select • enter to confirm • esc to cancel"),
	))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("#333333")),
	)
}

func (m Model) renderHeader() string {
	header := logoStyle.Render("walkoff scheduler")
	if m.client {
		header += "  " + subtitleStyle.Render("(daemon owns the scheduler)")
	}
	return header
}

func (m Model) renderStatus(b *strings.Builder) {
	if m.statusMsg == "" {
		return
	}
	if m.statusErr {
		b.WriteString(errorMsgStyle.Render("✗ " + m.statusMsg))
	} else {
		b.WriteString(successMsgStyle.Render("✓ " + m.statusMsg))
	}
	b.WriteString("\n")
}

func (m Model) renderList() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.searchMode {
		searchStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
		b.WriteString(searchStyle.Render("/ " + m.searchInput.View()))
		b.WriteString("\n\n")
	}

	tasksToShow := m.getDisplayTasks()
	switch {
	case len(m.tasks) == 0:
		b.WriteString(emptyBoxStyle.Render("No scheduled tasks yet\n\nPress 'a' to add one"))
	case m.searchMode && len(tasksToShow) == 0 && m.searchInput.Value() != "":
		b.WriteString(emptyBoxStyle.Render("No tasks match your search\n\nPress 'esc' to clear"))
	default:
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	m.renderStatus(&b)

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(keys.ShortHelp()))
		b.WriteString("  " + helpKeyStyle.Render("/") + helpDescStyle.Render(" search"))
	}
	return b.String()
}

func (m Model) renderForm() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("  " + subtitleStyle.Render("new task"))
	b.WriteString("\n\n")

	labels := [fieldCount]string{
		fieldName:        "Name",
		fieldDescription: "Description",
		fieldTriggerType: "Trigger type",
		fieldTriggerArgs: "Trigger args (JSON)",
		fieldWorkflows:   "Workflows",
	}
	for i, in := range m.formInputs {
		b.WriteString(inputLabelStyle.Render(labels[i]))
		b.WriteString("\n")
		style := blurredInputStyle
		if i == m.formFocus {
			style = focusedInputStyle
		}
		b.WriteString(style.Render(in.View()))
		b.WriteString("\n")
	}

	if m.formErr != "" {
		b.WriteString(errorMsgStyle.Render("✗ " + m.formErr))
		b.WriteString("\n")
	}
	m.renderStatus(&b)

	b.WriteString("\n")
	b.WriteString(helpKeyStyle.Render("tab") + helpDescStyle.Render(" next • ") +
		helpKeyStyle.Render("ctrl+s") + helpDescStyle.Render(" save • ") +
		helpKeyStyle.Render("esc") + helpDescStyle.Render(" cancel"))
	return b.String()
}

func (m Model) renderDetail() string {
	if m.selectedTask == nil {
		return m.renderList()
	}
	var b strings.Builder

	b.WriteString(logoStyle.Render(m.selectedTask.Name()))
	b.WriteString("  ")
	if m.selectedTask.Status() == task.StatusRunning {
		b.WriteString(statusOK.Render("● running"))
	} else {
		b.WriteString(statusFail.Render("○ stopped"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	m.renderStatus(&b)
	b.WriteString("\n")

	b.WriteString(helpKeyStyle.Render("↑/↓") + helpDescStyle.Render(" scroll • ") +
		helpKeyStyle.Render("t") + helpDescStyle.Render(" start/stop • ") +
		helpKeyStyle.Render("r") + helpDescStyle.Render(" run now • ") +
		helpKeyStyle.Render("esc") + helpDescStyle.Render(" back"))
	return b.String()
}

// detailMarkdown describes the selected task as markdown for glamour
func (m Model) detailMarkdown() string {
	t := m.selectedTask
	var b strings.Builder

	if t.Description() != "" {
		b.WriteString(t.Description())
		b.WriteString("\n\n")
	}

	spec := t.Trigger().Spec()
	fmt.Fprintf(&b, "## Trigger\n\n`%s` `%s`\n\n", spec.Type, spec.Args)
	if next, ok := m.nextRuns[t.ID()]; ok {
		fmt.Fprintf(&b, "Next run: **%s**\n\n", next.Format(time.RFC1123))
	}

	b.WriteString("## Workflows\n\n")
	workflows := t.Workflows()
	if len(workflows) == 0 {
		b.WriteString("_none_\n")
	}
	for _, wf := range workflows {
		fmt.Fprintf(&b, "- `%s`\n", wf)
	}
	return b.String()
}

func (m Model) renderDetailContent() string {
	if m.selectedTask == nil {
		return ""
	}
	var b strings.Builder

	md := m.detailMarkdown()
	rendered := md
	if m.mdRenderer != nil {
		if out, err := m.mdRenderer.Render(md); err == nil {
			rendered = out
		}
	}
	b.WriteString(rendered)
	b.WriteString("\n")

	if len(m.runs) == 0 {
		b.WriteString(emptyBoxStyle.Render("No runs yet for this task"))
		return b.String()
	}

	runs := make([]*db.Run, len(m.runs))
	copy(runs, m.runs)
	sort.Slice(runs, func(i, j int) bool {
		if (runs[i].Status == db.RunStatusRunning) != (runs[j].Status == db.RunStatusRunning) {
			return runs[i].Status == db.RunStatusRunning
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	for _, run := range runs {
		var statusIcon string
		switch run.Status {
		case db.RunStatusCompleted:
			statusIcon = statusOK.Render("✓ COMPLETED")
		case db.RunStatusFailed:
			statusIcon = statusFail.Render("✗ FAILED")
		case db.RunStatusRunning:
			statusIcon = statusRunning.Render("● RUNNING")
		default:
			statusIcon = statusPending.Render("○ " + strings.ToUpper(string(run.Status)))
		}

		duration := "..."
		if run.EndedAt != nil {
			duration = run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}

		fmt.Fprintf(&b, "%s  %s  %s  (%s)\n",
			statusIcon,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			subtitleStyle.Render(run.WorkflowID.String()),
			duration)
		if run.Error != "" {
			b.WriteString(statusFail.Render("Error: "))
			b.WriteString(run.Error)
			b.WriteString("\n")
		}
		b.WriteString(dividerStyle.Render(strings.Repeat("─", 60)))
		b.WriteString("\n")
	}
	return b.String()
}

// Run starts the TUI application
func Run(ctx context.Context, backend Backend, schedule NextRuns, runner Runner) error {
	m := NewModel(ctx, backend, schedule, runner)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
