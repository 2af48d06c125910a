package tui

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"todoflow/app"
	"todoflow/model"
)

type uiMode int

const (
	modeNormal uiMode = iota
	modeForm
	modeSearch
	modeConfirmDelete
	modeConfirmClear
)

// formField is the add/edit form step currently being typed.
type formField int

const (
	fieldTitle formField = iota
	fieldPriority
	fieldDue
	fieldNotes
)

func (f formField) label() string {
	switch f {
	case fieldPriority:
		return "Priority (low/medium/high or 1-3)"
	case fieldDue:
		return "Due date (YYYY-MM-DD, empty for none)"
	case fieldNotes:
		return "Notes"
	default:
		return "Title"
	}
}

const dueLayout = "2006-01-02"

// stateChangedMsg tells the model the dispatcher state moved, usually
// because an async load or save finished.
type stateChangedMsg struct{}

type clipboardMsg struct {
	count int
	err   error
}

type Model struct {
	d      *app.Dispatcher
	logger *slog.Logger

	state   model.State
	changes chan struct{}
	unsub   func()

	mode    uiMode
	field   formField
	editing bool
	input   textinput.Model
	cursor  int

	confirmID   uuid.UUID
	confirmName string

	showHelp bool

	status    string
	statusErr bool

	width  int
	height int
}

// NewModel subscribes to d and renders its state. Call Close when done.
func NewModel(d *app.Dispatcher, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 500

	m := &Model{
		d:       d,
		logger:  logger,
		changes: make(chan struct{}, 1),
		input:   ti,
		status:  "Ready",
	}
	m.unsub = d.Subscribe(func(model.State) {
		select {
		case m.changes <- struct{}{}:
		default:
			// A pending signal already covers this change.
		}
	})
	m.refresh()
	return m
}

// Close drops the dispatcher subscription.
func (m *Model) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Run drives the TUI until the user quits.
func Run(d *app.Dispatcher, logger *slog.Logger, in io.Reader, out io.Writer) error {
	m := NewModel(d, logger)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(in), tea.WithOutput(out))
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return stateChangedMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = clamp(msg.Width-40, 10, 200)
	case stateChangedMsg:
		m.refresh()
		return m, m.waitForChange()
	case clipboardMsg:
		if msg.err != nil {
			m.setStatus("Copy failed: "+msg.err.Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("%d todos copied to the clipboard", msg.count), false)
		}
	case tea.KeyMsg:
		switch m.mode {
		case modeForm, modeSearch:
			return m, m.updateInputMode(msg)
		case modeConfirmDelete, modeConfirmClear:
			m.updateConfirmMode(msg)
		default:
			return m, m.updateNormalMode(msg)
		}
	}
	return m, nil
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		m.Close()
		return tea.Quit
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.moveCursor(len(m.state.DisplayList))
	case "a":
		m.send(app.AddTodoButtonTapped{})
		return m.startForm(false)
	case "e":
		return m.startEdit()
	case "x":
		m.onSelected(func(t model.Todo) {
			m.send(app.ToggleTodo{ID: t.ID})
			if m.statusErr {
				return
			}
			if t.IsCompleted {
				m.setStatus("Reopened: "+t.Title, false)
			} else {
				m.setStatus("Completed: "+t.Title, false)
			}
		})
	case "s":
		m.onSelected(func(t model.Todo) {
			m.send(app.ToggleFavorite{ID: t.ID})
			if !m.statusErr {
				m.setStatus("Favorite toggled: "+t.Title, false)
			}
		})
	case "1":
		m.setSelectedPriority(model.PriorityLow)
	case "2":
		m.setSelectedPriority(model.PriorityMedium)
	case "3":
		m.setSelectedPriority(model.PriorityHigh)
	case "d":
		m.onSelected(func(t model.Todo) {
			m.mode = modeConfirmDelete
			m.confirmID = t.ID
			m.confirmName = t.Title
		})
	case "f":
		next := nextOf(model.Filters, m.state.Filter)
		m.send(app.FilterOptionChanged{Filter: next})
		m.cursor = 0
		m.setStatus("Filter: "+string(next), false)
	case "o":
		next := nextOf(model.SortKeys, m.state.SortKey)
		m.send(app.SortOptionChanged{SortKey: next})
		m.setStatus("Sort: "+string(next), false)
	case "r":
		m.send(app.ToggleSortOrder{})
		m.setStatus("Order: "+directionLabel(m.state.Ascending), false)
	case "/":
		m.mode = modeSearch
		m.input.SetValue(m.state.SearchText)
		m.input.CursorEnd()
		m.setStatus("Incremental search: type to filter", false)
		return m.input.Focus()
	case "C":
		completed := 0
		for _, t := range m.state.Todos {
			if t.IsCompleted {
				completed++
			}
		}
		if completed == 0 {
			m.setStatus("No completed todos to clear", false)
			break
		}
		m.mode = modeConfirmClear
		m.confirmName = fmt.Sprintf("%d completed", completed)
	case "A":
		m.send(app.MarkAllAsCompleted{})
		if !m.statusErr {
			m.setStatus("All todos completed", false)
		}
	case "R":
		m.send(app.MarkAllAsActive{})
		if !m.statusErr {
			m.setStatus("All todos reopened", false)
		}
	case "y":
		return m.copyActiveTodos()
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.setStatus("Shortcuts open (? or Esc to close)", false)
		} else {
			m.setStatus("Shortcuts hidden", false)
		}
	case "esc":
		switch {
		case m.showHelp:
			m.showHelp = false
			m.setStatus("Shortcuts hidden", false)
		case m.state.ErrorMessage != "":
			m.send(app.ClearError{})
			m.setStatus("Ready", false)
		case strings.TrimSpace(m.state.SearchText) != "":
			m.send(app.SearchTextChanged{Text: ""})
			m.cursor = 0
			m.setStatus("Search cleared", false)
		}
	}
	return nil
}

func (m *Model) updateInputMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancelInput()
		return nil
	case "enter":
		if m.mode == modeSearch {
			m.leaveInput()
			if m.state.SearchText == "" {
				m.setStatus("Search cleared", false)
			} else {
				m.setStatus("Search applied", false)
			}
			return nil
		}
		m.submitField()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.send(app.SearchTextChanged{Text: strings.TrimSpace(m.input.Value())})
		m.cursor = 0
	}
	return cmd
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) {
	switch strings.ToLower(msg.String()) {
	case "y":
		if m.mode == modeConfirmClear {
			m.send(app.ClearCompleted{})
			if !m.statusErr {
				m.setStatus("Completed todos cleared", false)
			}
		} else {
			m.send(app.DeleteTodo{ID: m.confirmID})
			if !m.statusErr {
				m.setStatus("Deleted: "+m.confirmName, false)
			}
		}
		m.resetConfirm()
	case "n", "esc", "enter":
		m.resetConfirm()
		m.setStatus("Cancelled", false)
	}
}

func (m *Model) resetConfirm() {
	m.mode = modeNormal
	m.confirmID = uuid.Nil
	m.confirmName = ""
}

func (m *Model) startEdit() tea.Cmd {
	t, ok := m.selected()
	if !ok {
		m.setStatus("No todo selected", true)
		return nil
	}
	m.send(app.EditTodo{ID: t.ID})
	return m.startForm(true)
}

func (m *Model) startForm(editing bool) tea.Cmd {
	m.mode = modeForm
	m.editing = editing
	m.field = fieldTitle
	m.input.SetValue(m.fieldValue(fieldTitle))
	m.input.CursorEnd()
	if editing {
		m.setStatus("Editing todo: Enter next field, Esc cancel", false)
	} else {
		m.setStatus("New todo: Enter next field, Esc cancel", false)
	}
	return m.input.Focus()
}

// fieldValue is the draft's current value for f, as typed text.
func (m *Model) fieldValue(f formField) string {
	draft := m.state.Draft
	switch f {
	case fieldPriority:
		return string(draft.Priority)
	case fieldDue:
		if draft.DueDate == nil {
			return ""
		}
		return draft.DueDate.Format(dueLayout)
	case fieldNotes:
		return draft.Notes
	default:
		return draft.Title
	}
}

// submitField dispatches the typed value as a draft change and advances.
// The last field saves the draft.
func (m *Model) submitField() {
	value := m.input.Value()
	switch m.field {
	case fieldTitle:
		m.send(app.NewTodoTitleChanged{Title: value})
	case fieldPriority:
		p, err := parsePriorityInput(value)
		if err != nil {
			m.setStatus(err.Error(), true)
			return
		}
		m.send(app.NewTodoPriorityChanged{Priority: p})
	case fieldDue:
		due, err := parseDueInput(value)
		if err != nil {
			m.setStatus(err.Error(), true)
			return
		}
		m.send(app.NewTodoDueDateChanged{DueDate: due})
	case fieldNotes:
		m.send(app.NewTodoNotesChanged{Notes: value})
		m.saveForm()
		return
	}
	m.field++
	m.input.SetValue(m.fieldValue(m.field))
	m.input.CursorEnd()
}

func (m *Model) saveForm() {
	before := len(m.state.Todos)
	if m.editing {
		m.send(app.SaveEditTodo{})
	} else {
		m.send(app.SaveNewTodo{})
	}
	if m.state.ErrorMessage != "" {
		// Back to the title so the user can fix it.
		m.send(app.ClearError{})
		m.setStatus("Title required", true)
		m.field = fieldTitle
		m.input.SetValue(m.fieldValue(fieldTitle))
		m.input.CursorEnd()
		return
	}
	editing := m.editing
	m.leaveInput()
	if editing {
		m.setStatus("Todo updated", false)
		return
	}
	if len(m.state.Todos) > before {
		m.selectID(m.state.Todos[len(m.state.Todos)-1].ID)
	}
	m.setStatus("Todo added", false)
}

func (m *Model) cancelInput() {
	switch m.mode {
	case modeSearch:
		m.send(app.SearchTextChanged{Text: ""})
		m.cursor = 0
		m.setStatus("Search cleared", false)
	case modeForm:
		if m.editing {
			m.send(app.CancelEditTodo{})
		} else {
			m.send(app.CancelAddTodo{})
		}
		m.setStatus("Cancelled", false)
	}
	m.leaveInput()
}

func (m *Model) leaveInput() {
	m.mode = modeNormal
	m.editing = false
	m.field = fieldTitle
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) setSelectedPriority(p model.Priority) {
	m.onSelected(func(t model.Todo) {
		m.send(app.UpdateTodoPriority{ID: t.ID, Priority: p})
		if !m.statusErr {
			m.setStatus("Priority: "+string(p), false)
		}
	})
}

func (m *Model) copyActiveTodos() tea.Cmd {
	payload, count := activeTodosText(m.state.DisplayList)
	if count == 0 {
		m.setStatus("No active todos to copy", false)
		return nil
	}
	return func() tea.Msg {
		return clipboardMsg{count: count, err: clipboard.WriteAll(payload)}
	}
}

// activeTodosText renders the open todos as a markdown bullet list.
func activeTodosText(todos []model.Todo) (string, int) {
	parts := make([]string, 0, len(todos))
	for _, t := range todos {
		if t.IsCompleted {
			continue
		}
		text := strings.TrimSpace(strings.ReplaceAll(t.Title, "\n", " "))
		if text == "" {
			continue
		}
		parts = append(parts, "- "+text)
	}
	return strings.Join(parts, "\n"), len(parts)
}

// send dispatches a and refreshes the local snapshot. An error message left
// in state becomes the status line.
func (m *Model) send(a app.Action) {
	m.d.Send(a)
	m.refresh()
	if m.state.ErrorMessage != "" {
		m.setStatus(m.state.ErrorMessage, true)
	}
}

func (m *Model) refresh() {
	m.state = m.d.State()
	m.cursor = clamp(m.cursor, 0, len(m.state.DisplayList)-1)
}

func (m *Model) moveCursor(delta int) {
	if len(m.state.DisplayList) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(m.state.DisplayList)-1)
}

func (m *Model) selected() (model.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.DisplayList) {
		return model.Todo{}, false
	}
	return m.state.DisplayList[m.cursor], true
}

func (m *Model) onSelected(fn func(model.Todo)) {
	t, ok := m.selected()
	if !ok {
		m.setStatus("No todo selected", true)
		return
	}
	m.statusErr = false
	fn(t)
}

func (m *Model) selectID(id uuid.UUID) {
	for i, t := range m.state.DisplayList {
		if t.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func parsePriorityInput(s string) (model.Priority, error) {
	switch strings.TrimSpace(s) {
	case "":
		return model.PriorityMedium, nil
	case "1":
		return model.PriorityLow, nil
	case "2":
		return model.PriorityMedium, nil
	case "3":
		return model.PriorityHigh, nil
	}
	return model.ParsePriority(s)
}

func parseDueInput(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dueLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func nextOf[T comparable](all []T, current T) T {
	for i, v := range all {
		if v == current {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

func directionLabel(ascending bool) string {
	if ascending {
		return "ascending"
	}
	return "descending"
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if max < min {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
