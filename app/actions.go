package app

import (
	"time"

	"github.com/google/uuid"

	"todoflow/model"
)

// Action is a request to transition state. Hosts interact with the engine
// only by sending actions to a Dispatcher.
type Action interface {
	action()
}

// Lifecycle.
type (
	OnAppear  struct{}
	LoadTodos struct{}

	TodosLoaded struct {
		Todos []model.Todo
	}

	// SaveTodos persists a snapshot of the records. BestEffort saves are the
	// ones the engine schedules after a mutation; their failures are logged
	// and otherwise ignored.
	SaveTodos struct {
		BestEffort bool
	}

	TodosSaved struct {
		Err        error
		BestEffort bool
	}
)

// Create.
type (
	AddTodoButtonTapped struct{}
	CancelAddTodo       struct{}

	NewTodoTitleChanged struct {
		Title string
	}
	NewTodoPriorityChanged struct {
		Priority model.Priority
	}
	NewTodoDueDateChanged struct {
		DueDate *time.Time
	}
	NewTodoNotesChanged struct {
		Notes string
	}

	SaveNewTodo struct{}
)

// Read.
type (
	SearchTextChanged struct {
		Text string
	}
	FilterOptionChanged struct {
		Filter model.Filter
	}
	SortOptionChanged struct {
		SortKey model.SortKey
	}
	ToggleSortOrder     struct{}
	ApplyFiltersAndSort struct{}
)

// Update.
type (
	ToggleTodo struct {
		ID uuid.UUID
	}
	ToggleFavorite struct {
		ID uuid.UUID
	}
	EditTodo struct {
		ID uuid.UUID
	}
	UpdateTodoTitle struct {
		ID    uuid.UUID
		Title string
	}
	UpdateTodoPriority struct {
		ID       uuid.UUID
		Priority model.Priority
	}
	UpdateTodoDueDate struct {
		ID      uuid.UUID
		DueDate *time.Time
	}
	UpdateTodoNotes struct {
		ID    uuid.UUID
		Notes string
	}
	CancelEditTodo struct{}
	SaveEditTodo   struct{}
)

// Delete and bulk.
type (
	DeleteTodo struct {
		ID uuid.UUID
	}
	ClearCompleted     struct{}
	MarkAllAsCompleted struct{}
	MarkAllAsActive    struct{}
)

// Statistics and errors.
type (
	CalculateStatistics  struct{}
	StatisticsCalculated struct {
		Statistics model.Statistics
	}
	ClearError struct{}
)

func (OnAppear) action()               {}
func (LoadTodos) action()              {}
func (TodosLoaded) action()            {}
func (SaveTodos) action()              {}
func (TodosSaved) action()             {}
func (AddTodoButtonTapped) action()    {}
func (CancelAddTodo) action()          {}
func (NewTodoTitleChanged) action()    {}
func (NewTodoPriorityChanged) action() {}
func (NewTodoDueDateChanged) action()  {}
func (NewTodoNotesChanged) action()    {}
func (SaveNewTodo) action()            {}
func (SearchTextChanged) action()      {}
func (FilterOptionChanged) action()    {}
func (SortOptionChanged) action()      {}
func (ToggleSortOrder) action()        {}
func (ApplyFiltersAndSort) action()    {}
func (ToggleTodo) action()             {}
func (ToggleFavorite) action()         {}
func (EditTodo) action()               {}
func (UpdateTodoTitle) action()        {}
func (UpdateTodoPriority) action()     {}
func (UpdateTodoDueDate) action()      {}
func (UpdateTodoNotes) action()        {}
func (CancelEditTodo) action()         {}
func (SaveEditTodo) action()           {}
func (DeleteTodo) action()             {}
func (ClearCompleted) action()         {}
func (MarkAllAsCompleted) action()     {}
func (MarkAllAsActive) action()        {}
func (CalculateStatistics) action()    {}
func (StatisticsCalculated) action()   {}
func (ClearError) action()             {}
