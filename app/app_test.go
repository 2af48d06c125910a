package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoflow/model"
)

var baseTime = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

func idN(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

type fakeGateway struct {
	mu      sync.Mutex
	todos   []model.Todo
	loadErr error
	saveErr error
	saves   int
	loads   int
}

func (g *fakeGateway) Load(context.Context) ([]model.Todo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads++
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	return model.CopyTodos(g.todos), nil
}

func (g *fakeGateway) Save(_ context.Context, todos []model.Todo) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.saveErr != nil {
		return g.saveErr
	}
	g.todos = model.CopyTodos(todos)
	return nil
}

func (g *fakeGateway) saved() []model.Todo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.CopyTodos(g.todos)
}

func newTestReducer(gw Gateway) *Reducer {
	next := 100
	return NewReducer(gw,
		WithClock(func() time.Time { return baseTime }),
		WithIDGenerator(func() uuid.UUID {
			next++
			return idN(next)
		}),
	)
}

func followUps(effects []Effect) []Action {
	out := make([]Action, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Action())
	}
	return out
}

func mutationFollowUps() []Action {
	return []Action{ApplyFiltersAndSort{}, SaveTodos{BestEffort: true}, CalculateStatistics{}}
}

func stateWith(todos ...model.Todo) model.State {
	st := model.NewState()
	st.Todos = todos
	return st
}

func todo(n int, title string) model.Todo {
	return model.Todo{
		ID:        idN(n),
		Title:     title,
		Priority:  model.PriorityMedium,
		CreatedAt: baseTime.Add(time.Duration(n) * time.Second),
	}
}

func assertCompletionInvariant(t *testing.T, todos []model.Todo) {
	t.Helper()
	for _, td := range todos {
		assert.Equal(t, td.IsCompleted, td.CompletedAt != nil, "completion invariant broken for %q", td.Title)
	}
}

func TestSaveNewTodoRejectsBlankTitle(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))
	st.ShowAddTodo = true
	st.Draft.Title = "   "

	next, effects := r.Reduce(st, SaveNewTodo{})

	assert.Empty(t, effects)
	assert.Equal(t, st.Todos, next.Todos)
	assert.Equal(t, "title required", next.ErrorMessage)
	assert.True(t, next.ShowAddTodo)
}

func TestSaveNewTodoAppendsFromDraft(t *testing.T) {
	r := newTestReducer(nil)
	due := baseTime.Add(72 * time.Hour)
	st := model.NewState()

	st, _ = r.Reduce(st, AddTodoButtonTapped{})
	require.True(t, st.ShowAddTodo)
	st, _ = r.Reduce(st, NewTodoTitleChanged{Title: "  Pay bills "})
	st, _ = r.Reduce(st, NewTodoPriorityChanged{Priority: model.PriorityHigh})
	st, _ = r.Reduce(st, NewTodoDueDateChanged{DueDate: &due})
	st, _ = r.Reduce(st, NewTodoNotesChanged{Notes: "electricity"})

	next, effects := r.Reduce(st, SaveNewTodo{})

	require.Len(t, next.Todos, 1)
	got := next.Todos[0]
	assert.Equal(t, idN(101), got.ID)
	assert.Equal(t, "Pay bills", got.Title)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, baseTime, got.CreatedAt)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, *got.DueDate)
	assert.Equal(t, "electricity", got.Notes)
	assert.False(t, got.IsCompleted)
	assert.Nil(t, got.CompletedAt)

	assert.False(t, next.ShowAddTodo)
	assert.Equal(t, model.NewDraft(), next.Draft)
	assert.Equal(t, mutationFollowUps(), followUps(effects))
}

func TestCancelAddTodoDiscardsDraft(t *testing.T) {
	r := newTestReducer(nil)
	st := model.NewState()
	st, _ = r.Reduce(st, AddTodoButtonTapped{})
	st, _ = r.Reduce(st, NewTodoTitleChanged{Title: "draft"})

	next, effects := r.Reduce(st, CancelAddTodo{})

	assert.Empty(t, effects)
	assert.False(t, next.ShowAddTodo)
	assert.Equal(t, model.NewDraft(), next.Draft)
	assert.Empty(t, next.Todos)
}

func TestToggleTodoMaintainsCompletedAt(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))

	st, effects := r.Reduce(st, ToggleTodo{ID: idN(1)})
	assert.Equal(t, mutationFollowUps(), followUps(effects))
	require.True(t, st.Todos[0].IsCompleted)
	require.NotNil(t, st.Todos[0].CompletedAt)
	assert.Equal(t, baseTime, *st.Todos[0].CompletedAt)

	st, _ = r.Reduce(st, ToggleTodo{ID: idN(1)})
	assert.False(t, st.Todos[0].IsCompleted)
	assert.Nil(t, st.Todos[0].CompletedAt)
}

func TestUnknownIDIsSilentNoop(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))
	missing := idN(999)

	actions := []Action{
		ToggleTodo{ID: missing},
		ToggleFavorite{ID: missing},
		EditTodo{ID: missing},
		UpdateTodoTitle{ID: missing, Title: "x"},
		UpdateTodoPriority{ID: missing, Priority: model.PriorityHigh},
		UpdateTodoDueDate{ID: missing, DueDate: &baseTime},
		UpdateTodoNotes{ID: missing, Notes: "x"},
		DeleteTodo{ID: missing},
	}
	for _, a := range actions {
		next, effects := r.Reduce(st, a)
		assert.Empty(t, effects, "%T", a)
		assert.Equal(t, st, next, "%T", a)
	}
}

func TestEditThenSaveEditAppliesDraft(t *testing.T) {
	r := newTestReducer(nil)
	original := todo(1, "Old")
	original.Notes = "old notes"
	st := stateWith(original, todo(2, "Other"))

	st, effects := r.Reduce(st, EditTodo{ID: idN(1)})
	assert.Empty(t, effects)
	require.NotNil(t, st.EditingID)
	assert.Equal(t, idN(1), *st.EditingID)
	assert.Equal(t, "Old", st.Draft.Title)
	assert.Equal(t, "old notes", st.Draft.Notes)

	due := baseTime.Add(24 * time.Hour)
	st, _ = r.Reduce(st, NewTodoTitleChanged{Title: "New"})
	st, _ = r.Reduce(st, NewTodoPriorityChanged{Priority: model.PriorityLow})
	st, _ = r.Reduce(st, NewTodoDueDateChanged{DueDate: &due})
	st, _ = r.Reduce(st, NewTodoNotesChanged{Notes: "new notes"})

	next, effects := r.Reduce(st, SaveEditTodo{})

	assert.Equal(t, mutationFollowUps(), followUps(effects))
	assert.Nil(t, next.EditingID)
	assert.Equal(t, model.NewDraft(), next.Draft)
	got := next.Todos[0]
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, model.PriorityLow, got.Priority)
	assert.Equal(t, due, *got.DueDate)
	assert.Equal(t, "new notes", got.Notes)
	assert.Equal(t, original.CreatedAt, got.CreatedAt)
	assert.Equal(t, "Other", next.Todos[1].Title)
}

func TestSaveEditTodoValidation(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))

	next, effects := r.Reduce(st, SaveEditTodo{})
	assert.Empty(t, effects)
	assert.Equal(t, ErrTitleRequired.Error(), next.ErrorMessage)

	st, _ = r.Reduce(st, EditTodo{ID: idN(1)})
	st, _ = r.Reduce(st, NewTodoTitleChanged{Title: "\t "})
	next, effects = r.Reduce(st, SaveEditTodo{})
	assert.Empty(t, effects)
	assert.Equal(t, ErrTitleRequired.Error(), next.ErrorMessage)
	assert.Equal(t, "A", next.Todos[0].Title)
	assert.NotNil(t, next.EditingID)

	next, _ = r.Reduce(next, ClearError{})
	assert.Empty(t, next.ErrorMessage)
}

func TestSaveEditTodoAfterConcurrentDelete(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))
	st, _ = r.Reduce(st, EditTodo{ID: idN(1)})
	st, _ = r.Reduce(st, DeleteTodo{ID: idN(1)})

	next, effects := r.Reduce(st, SaveEditTodo{})

	assert.Empty(t, effects)
	assert.Empty(t, next.Todos)
	assert.Nil(t, next.EditingID)
	assert.Empty(t, next.ErrorMessage)
}

func TestCancelEditTodoClearsEditState(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))
	st, _ = r.Reduce(st, EditTodo{ID: idN(1)})

	next, _ := r.Reduce(st, CancelEditTodo{})
	assert.Nil(t, next.EditingID)
	assert.Equal(t, model.NewDraft(), next.Draft)
}

func TestFieldSettersFollowUps(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"))
	due := baseTime.Add(time.Hour)

	next, effects := r.Reduce(st, UpdateTodoTitle{ID: idN(1), Title: "B"})
	assert.Equal(t, "B", next.Todos[0].Title)
	assert.Equal(t, []Action{SaveTodos{BestEffort: true}}, followUps(effects))

	next, effects = r.Reduce(st, UpdateTodoNotes{ID: idN(1), Notes: "n"})
	assert.Equal(t, "n", next.Todos[0].Notes)
	assert.Equal(t, []Action{SaveTodos{BestEffort: true}}, followUps(effects))

	next, effects = r.Reduce(st, UpdateTodoPriority{ID: idN(1), Priority: model.PriorityHigh})
	assert.Equal(t, model.PriorityHigh, next.Todos[0].Priority)
	assert.Equal(t, mutationFollowUps(), followUps(effects))

	next, effects = r.Reduce(st, UpdateTodoDueDate{ID: idN(1), DueDate: &due})
	assert.Equal(t, due, *next.Todos[0].DueDate)
	assert.Equal(t, mutationFollowUps(), followUps(effects))
}

func TestBulkActions(t *testing.T) {
	r := newTestReducer(nil)
	done := todo(2, "done")
	completedAt := baseTime.Add(-time.Hour)
	done.IsCompleted = true
	done.CompletedAt = &completedAt
	st := stateWith(todo(1, "open"), done, todo(3, "open too"))

	all, effects := r.Reduce(st, MarkAllAsCompleted{})
	assert.Equal(t, mutationFollowUps(), followUps(effects))
	for _, td := range all.Todos {
		assert.True(t, td.IsCompleted)
	}
	assert.Equal(t, completedAt, *all.Todos[1].CompletedAt, "already completed keeps its timestamp")
	assert.Equal(t, baseTime, *all.Todos[0].CompletedAt)
	assertCompletionInvariant(t, all.Todos)

	none, effects := r.Reduce(all, MarkAllAsActive{})
	assert.Equal(t, mutationFollowUps(), followUps(effects))
	for _, td := range none.Todos {
		assert.False(t, td.IsCompleted)
	}
	assertCompletionInvariant(t, none.Todos)

	cleared, effects := r.Reduce(st, ClearCompleted{})
	assert.Equal(t, mutationFollowUps(), followUps(effects))
	require.Len(t, cleared.Todos, 2)
	assert.Equal(t, idN(1), cleared.Todos[0].ID)
	assert.Equal(t, idN(3), cleared.Todos[1].ID)

	deleted, effects := r.Reduce(st, DeleteTodo{ID: idN(2)})
	assert.Equal(t, mutationFollowUps(), followUps(effects))
	assert.Len(t, deleted.Todos, 2)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"), todo(2, "B"))
	before := st.Copy()

	r.Reduce(st, ToggleTodo{ID: idN(1)})
	r.Reduce(st, DeleteTodo{ID: idN(1)})
	r.Reduce(st, MarkAllAsCompleted{})
	r.Reduce(st, UpdateTodoTitle{ID: idN(2), Title: "changed"})

	assert.Equal(t, before, st)
}

func TestSettingsChangesReapplyFilters(t *testing.T) {
	r := newTestReducer(nil)
	st := model.NewState()

	cases := []struct {
		action Action
		check  func(model.State)
	}{
		{SearchTextChanged{Text: "milk"}, func(s model.State) { assert.Equal(t, "milk", s.SearchText) }},
		{FilterOptionChanged{Filter: model.FilterActive}, func(s model.State) { assert.Equal(t, model.FilterActive, s.Filter) }},
		{SortOptionChanged{SortKey: model.SortByTitle}, func(s model.State) { assert.Equal(t, model.SortByTitle, s.SortKey) }},
		{ToggleSortOrder{}, func(s model.State) { assert.False(t, s.Ascending) }},
	}
	for _, tc := range cases {
		next, effects := r.Reduce(st, tc.action)
		assert.Equal(t, []Action{ApplyFiltersAndSort{}}, followUps(effects), "%T", tc.action)
		tc.check(next)
	}
}

func TestLoadLifecycle(t *testing.T) {
	gw := &fakeGateway{todos: []model.Todo{todo(1, "A")}}
	r := newTestReducer(gw)
	st := model.NewState()

	st, effects := r.Reduce(st, OnAppear{})
	assert.Equal(t, []Action{LoadTodos{}}, followUps(effects))

	st, effects = r.Reduce(st, LoadTodos{})
	require.Len(t, effects, 1)
	require.True(t, effects[0].IsAsync())
	assert.False(t, effects[0].IsOrdered())
	assert.True(t, st.IsLoading)

	_, again := r.Reduce(st, LoadTodos{})
	assert.Empty(t, again, "a second load while one is in flight is ignored")

	loaded := effects[0].Execute(context.Background())
	require.IsType(t, TodosLoaded{}, loaded)

	st, effects = r.Reduce(st, loaded)
	assert.False(t, st.IsLoading)
	assert.Equal(t, gw.todos, st.Todos)
	assert.Equal(t, []Action{ApplyFiltersAndSort{}, CalculateStatistics{}}, followUps(effects))
}

func TestLoadFailureYieldsEmptyCollection(t *testing.T) {
	gw := &fakeGateway{loadErr: errors.New("disk on fire")}
	r := newTestReducer(gw)
	st, effects := r.Reduce(model.NewState(), LoadTodos{})

	loaded := effects[0].Execute(context.Background())
	assert.Equal(t, TodosLoaded{Todos: []model.Todo{}}, loaded)

	st, _ = r.Reduce(st, loaded)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Todos)
	assert.Empty(t, st.ErrorMessage)
}

func TestTodosLoadedRepairsInvariant(t *testing.T) {
	r := newTestReducer(nil)
	broken := todo(1, "completed without timestamp")
	broken.IsCompleted = true
	stale := todo(2, "open with timestamp")
	stale.CompletedAt = &baseTime
	odd := todo(3, "unknown priority")
	odd.Priority = "urgent"

	st, _ := r.Reduce(model.NewState(), TodosLoaded{Todos: []model.Todo{broken, stale, odd}})

	assertCompletionInvariant(t, st.Todos)
	assert.Equal(t, broken.CreatedAt, *st.Todos[0].CompletedAt)
	assert.Equal(t, model.PriorityMedium, st.Todos[2].Priority)
}

func TestSaveResultHandling(t *testing.T) {
	gw := &fakeGateway{saveErr: errors.New("read-only")}
	r := newTestReducer(gw)
	st := stateWith(todo(1, "A"))

	_, effects := r.Reduce(st, SaveTodos{BestEffort: true})
	require.Len(t, effects, 1)
	assert.True(t, effects[0].IsOrdered(), "saves share the ordered queue")
	result := effects[0].Execute(context.Background())
	next, _ := r.Reduce(st, result)
	assert.Empty(t, next.ErrorMessage)

	_, effects = r.Reduce(st, SaveTodos{})
	result = effects[0].Execute(context.Background())
	next, _ = r.Reduce(st, result)
	assert.Contains(t, next.ErrorMessage, "save failed")
	assert.Contains(t, next.ErrorMessage, "read-only")
}

func TestSaveUsesSnapshot(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestReducer(gw)
	st := stateWith(todo(1, "A"))

	_, effects := r.Reduce(st, SaveTodos{})
	st.Todos[0].Title = "mutated after scheduling"
	effects[0].Execute(context.Background())

	assert.Equal(t, "A", gw.saved()[0].Title)
}

func TestCompletionInvariantHoldsAcrossActions(t *testing.T) {
	r := newTestReducer(nil)
	st := stateWith(todo(1, "A"), todo(2, "B"), todo(3, "C"))
	seq := []Action{
		ToggleTodo{ID: idN(1)},
		MarkAllAsCompleted{},
		ToggleTodo{ID: idN(2)},
		ToggleFavorite{ID: idN(3)},
		MarkAllAsActive{},
		ToggleTodo{ID: idN(3)},
		ClearCompleted{},
		AddTodoButtonTapped{},
		NewTodoTitleChanged{Title: "D"},
		SaveNewTodo{},
	}
	for _, a := range seq {
		st, _ = r.Reduce(st, a)
		assertCompletionInvariant(t, st.Todos)
	}
	assert.Len(t, st.Todos, 3)
}
