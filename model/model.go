package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is a task priority, totally ordered low < medium < high.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Rank returns 1, 2 or 3 for low, medium and high. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Rank() == 0 {
		return "", fmt.Errorf("invalid priority %q", s)
	}
	return p, nil
}

// Filter selects which records reach the display list.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterFavorites Filter = "favorites"
)

var Filters = []Filter{FilterAll, FilterActive, FilterCompleted, FilterFavorites}

func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Filters {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid filter %q", s)
}

// SortKey is the field the display list is ordered by.
type SortKey string

const (
	SortByCreatedAt SortKey = "createdAt"
	SortByPriority  SortKey = "priority"
	SortByDueDate   SortKey = "dueDate"
	SortByTitle     SortKey = "title"
)

var SortKeys = []SortKey{SortByCreatedAt, SortByPriority, SortByDueDate, SortByTitle}

// ParseSortKey accepts the canonical names case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for _, known := range SortKeys {
		if strings.ToLower(string(known)) == want {
			return known, nil
		}
	}
	return "", fmt.Errorf("invalid sort key %q", s)
}

// Todo is a single to-do record.
// CompletedAt is non-nil exactly when IsCompleted is true.
type Todo struct {
	ID          uuid.UUID  `json:"id" yaml:"id" toml:"id" validate:"required"`
	Title       string     `json:"title" yaml:"title" toml:"title" validate:"required"`
	IsCompleted bool       `json:"isCompleted" yaml:"isCompleted" toml:"isCompleted"`
	IsFavorite  bool       `json:"isFavorite" yaml:"isFavorite" toml:"isFavorite"`
	Priority    Priority   `json:"priority" yaml:"priority" toml:"priority"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt" toml:"createdAt" validate:"required"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty" toml:"completedAt,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty" toml:"dueDate,omitempty"`
	Notes       string     `json:"notes,omitempty" yaml:"notes,omitempty" toml:"notes,omitempty"`
}

// Draft holds the add/edit form fields.
type Draft struct {
	Title    string
	Priority Priority
	DueDate  *time.Time
	Notes    string
}

// NewDraft returns a blank draft with the default priority.
func NewDraft() Draft {
	return Draft{Priority: PriorityMedium}
}

// Statistics summarizes the full record collection.
type Statistics struct {
	Total              int     `json:"total" yaml:"total"`
	Completed          int     `json:"completed" yaml:"completed"`
	Active             int     `json:"active" yaml:"active"`
	CompletionRate     float64 `json:"completionRate" yaml:"completionRate"`
	HighPriorityActive int     `json:"highPriorityActive" yaml:"highPriorityActive"`
	Favorites          int     `json:"favorites" yaml:"favorites"`
	FavoriteCompleted  int     `json:"favoriteCompleted" yaml:"favoriteCompleted"`
}

// State is everything the reducer owns.
type State struct {
	Todos        []Todo
	DisplayList  []Todo
	Filter       Filter
	SortKey      SortKey
	Ascending    bool
	SearchText   string
	IsLoading    bool
	ShowAddTodo  bool
	EditingID    *uuid.UUID
	Draft        Draft
	Statistics   *Statistics
	ErrorMessage string
}

// NewState returns an initialized empty state.
func NewState() State {
	return State{
		Todos:       []Todo{},
		DisplayList: []Todo{},
		Filter:      FilterAll,
		SortKey:     SortByCreatedAt,
		Ascending:   true,
		Draft:       NewDraft(),
	}
}

// Copy returns a state whose slices and pointers do not alias s.
func (s State) Copy() State {
	out := s
	out.Todos = CopyTodos(s.Todos)
	out.DisplayList = CopyTodos(s.DisplayList)
	out.Draft.DueDate = copyTime(s.Draft.DueDate)
	if s.EditingID != nil {
		id := *s.EditingID
		out.EditingID = &id
	}
	if s.Statistics != nil {
		st := *s.Statistics
		out.Statistics = &st
	}
	return out
}

// CopyTodos returns a copy of todos with fresh time pointers.
func CopyTodos(todos []Todo) []Todo {
	out := make([]Todo, len(todos))
	for i, t := range todos {
		t.CompletedAt = copyTime(t.CompletedAt)
		t.DueDate = copyTime(t.DueDate)
		out[i] = t
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
