package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"todoflow/model"
)

var (
	ErrTitleRequired = errors.New("title required")
	ErrSaveFailed    = errors.New("save failed")
)

// Reducer computes the next state and follow-up effects for one action.
// It holds no state of its own; everything it changes lives in model.State.
type Reducer struct {
	gateway Gateway
	now     func() time.Time
	newID   func() uuid.UUID
	logger  *slog.Logger
}

type Option func(*Reducer)

// WithClock replaces time.Now for creation and completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reducer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces uuid.New for new records.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(r *Reducer) {
		if newID != nil {
			r.newID = newID
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReducer returns a reducer persisting through gateway. A nil gateway
// loads nothing and saves nowhere.
func NewReducer(gateway Gateway, opts ...Option) *Reducer {
	if gateway == nil {
		gateway = nopGateway{}
	}
	r := &Reducer{
		gateway: gateway,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   newID,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reduce never mutates the slices of the state it is given and never panics
// on well-formed actions; every error path yields a valid next state.
func (r *Reducer) Reduce(state model.State, action Action) (model.State, []Effect) {
	state = state.Copy()

	switch a := action.(type) {
	case OnAppear:
		return state, []Effect{Send(LoadTodos{})}

	case LoadTodos:
		if state.IsLoading {
			r.logger.Debug("load already in flight, ignoring")
			return state, nil
		}
		state.IsLoading = true
		return state, []Effect{r.load()}

	case TodosLoaded:
		state.IsLoading = false
		state.Todos = normalizeTodos(a.Todos, r.now())
		return state, []Effect{Send(ApplyFiltersAndSort{}), Send(CalculateStatistics{})}

	case SaveTodos:
		return state, []Effect{r.save(model.CopyTodos(state.Todos), a.BestEffort)}

	case TodosSaved:
		if a.Err == nil {
			return state, nil
		}
		if a.BestEffort {
			r.logger.Warn("autosave failed", "err", a.Err)
			return state, nil
		}
		state.ErrorMessage = fmt.Errorf("%w: %v", ErrSaveFailed, a.Err).Error()
		return state, nil

	case AddTodoButtonTapped:
		state.ShowAddTodo = true
		state.Draft = model.NewDraft()
		return state, nil

	case CancelAddTodo:
		state.ShowAddTodo = false
		state.Draft = model.NewDraft()
		return state, nil

	case NewTodoTitleChanged:
		state.Draft.Title = a.Title
		return state, nil

	case NewTodoPriorityChanged:
		state.Draft.Priority = a.Priority
		return state, nil

	case NewTodoDueDateChanged:
		state.Draft.DueDate = copyTime(a.DueDate)
		return state, nil

	case NewTodoNotesChanged:
		state.Draft.Notes = a.Notes
		return state, nil

	case SaveNewTodo:
		title := strings.TrimSpace(state.Draft.Title)
		if title == "" {
			state.ErrorMessage = ErrTitleRequired.Error()
			return state, nil
		}
		priority := state.Draft.Priority
		if priority.Rank() == 0 {
			priority = model.PriorityMedium
		}
		state.Todos = append(state.Todos, model.Todo{
			ID:        r.newID(),
			Title:     title,
			Priority:  priority,
			CreatedAt: r.now(),
			DueDate:   copyTime(state.Draft.DueDate),
			Notes:     state.Draft.Notes,
		})
		state.ShowAddTodo = false
		state.Draft = model.NewDraft()
		return state, afterMutation()

	case SearchTextChanged:
		state.SearchText = a.Text
		return state, []Effect{Send(ApplyFiltersAndSort{})}

	case FilterOptionChanged:
		state.Filter = a.Filter
		return state, []Effect{Send(ApplyFiltersAndSort{})}

	case SortOptionChanged:
		state.SortKey = a.SortKey
		return state, []Effect{Send(ApplyFiltersAndSort{})}

	case ToggleSortOrder:
		state.Ascending = !state.Ascending
		return state, []Effect{Send(ApplyFiltersAndSort{})}

	case ApplyFiltersAndSort:
		state.DisplayList = FilterAndSort(state.Todos, QueryFromState(state))
		return state, nil

	case ToggleTodo:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		setCompleted(&state.Todos[i], !state.Todos[i].IsCompleted, r.now())
		return state, afterMutation()

	case ToggleFavorite:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		state.Todos[i].IsFavorite = !state.Todos[i].IsFavorite
		return state, afterMutation()

	case EditTodo:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		t := state.Todos[i]
		id := t.ID
		state.EditingID = &id
		state.Draft = model.Draft{
			Title:    t.Title,
			Priority: t.Priority,
			DueDate:  copyTime(t.DueDate),
			Notes:    t.Notes,
		}
		return state, nil

	case UpdateTodoTitle:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		state.Todos[i].Title = a.Title
		return state, []Effect{Send(SaveTodos{BestEffort: true})}

	case UpdateTodoNotes:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		state.Todos[i].Notes = a.Notes
		return state, []Effect{Send(SaveTodos{BestEffort: true})}

	case UpdateTodoPriority:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		state.Todos[i].Priority = a.Priority
		return state, afterMutation()

	case UpdateTodoDueDate:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		state.Todos[i].DueDate = copyTime(a.DueDate)
		return state, afterMutation()

	case CancelEditTodo:
		state.EditingID = nil
		state.Draft = model.NewDraft()
		return state, nil

	case SaveEditTodo:
		title := strings.TrimSpace(state.Draft.Title)
		if state.EditingID == nil || title == "" {
			state.ErrorMessage = ErrTitleRequired.Error()
			return state, nil
		}
		i := indexOf(state.Todos, *state.EditingID)
		state.EditingID = nil
		draft := state.Draft
		state.Draft = model.NewDraft()
		if i < 0 {
			return state, nil
		}
		state.Todos[i].Title = title
		if draft.Priority.Rank() != 0 {
			state.Todos[i].Priority = draft.Priority
		}
		state.Todos[i].DueDate = copyTime(draft.DueDate)
		state.Todos[i].Notes = draft.Notes
		return state, afterMutation()

	case DeleteTodo:
		i := indexOf(state.Todos, a.ID)
		if i < 0 {
			return state, nil
		}
		state.Todos = append(state.Todos[:i], state.Todos[i+1:]...)
		return state, afterMutation()

	case ClearCompleted:
		kept := make([]model.Todo, 0, len(state.Todos))
		for _, t := range state.Todos {
			if !t.IsCompleted {
				kept = append(kept, t)
			}
		}
		state.Todos = kept
		return state, afterMutation()

	case MarkAllAsCompleted:
		now := r.now()
		for i := range state.Todos {
			if !state.Todos[i].IsCompleted {
				setCompleted(&state.Todos[i], true, now)
			}
		}
		return state, afterMutation()

	case MarkAllAsActive:
		for i := range state.Todos {
			if state.Todos[i].IsCompleted {
				setCompleted(&state.Todos[i], false, time.Time{})
			}
		}
		return state, afterMutation()

	case CalculateStatistics:
		return state, []Effect{Send(StatisticsCalculated{Statistics: ComputeStatistics(state.Todos)})}

	case StatisticsCalculated:
		st := a.Statistics
		state.Statistics = &st
		return state, nil

	case ClearError:
		state.ErrorMessage = ""
		return state, nil

	default:
		r.logger.Warn("unhandled action", "action", actionName(action))
		return state, nil
	}
}

// afterMutation is the follow-up list for every change to the record
// collection: refresh the display list, persist, refresh statistics.
func afterMutation() []Effect {
	return []Effect{
		Send(ApplyFiltersAndSort{}),
		Send(SaveTodos{BestEffort: true}),
		Send(CalculateStatistics{}),
	}
}

func (r *Reducer) load() Effect {
	gateway, logger := r.gateway, r.logger
	return Run(func(ctx context.Context) Action {
		todos, err := gateway.Load(ctx)
		if err != nil {
			logger.Warn("load todos failed, starting empty", "err", err)
			return TodosLoaded{Todos: []model.Todo{}}
		}
		logger.Debug("todos loaded", "count", len(todos))
		return TodosLoaded{Todos: todos}
	})
}

func (r *Reducer) save(snapshot []model.Todo, bestEffort bool) Effect {
	gateway, logger := r.gateway, r.logger
	return RunInOrder(func(ctx context.Context) Action {
		err := gateway.Save(ctx, snapshot)
		if err == nil {
			logger.Debug("todos saved", "count", len(snapshot))
		}
		return TodosSaved{Err: err, BestEffort: bestEffort}
	})
}

func setCompleted(t *model.Todo, completed bool, at time.Time) {
	t.IsCompleted = completed
	if completed {
		t.CompletedAt = &at
		return
	}
	t.CompletedAt = nil
}

func indexOf(todos []model.Todo, id uuid.UUID) int {
	for i := range todos {
		if todos[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeTodos repairs records coming from a gateway so the completion
// invariant and the priority enum hold.
func normalizeTodos(todos []model.Todo, now time.Time) []model.Todo {
	out := model.CopyTodos(todos)
	for i := range out {
		if out[i].Priority.Rank() == 0 {
			out[i].Priority = model.PriorityMedium
		}
		switch {
		case out[i].IsCompleted && out[i].CompletedAt == nil:
			at := out[i].CreatedAt
			if at.IsZero() {
				at = now
			}
			out[i].CompletedAt = &at
		case !out[i].IsCompleted && out[i].CompletedAt != nil:
			out[i].CompletedAt = nil
		}
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func newID() uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(time.Now().UTC().Format(time.RFC3339Nano)))
	}
	return id
}
