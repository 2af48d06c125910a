package app

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"todoflow/model"
)

// Query is the set of view settings the display list is derived from.
type Query struct {
	Filter    model.Filter
	Search    string
	SortKey   model.SortKey
	Ascending bool
}

func QueryFromState(s model.State) Query {
	return Query{
		Filter:    s.Filter,
		Search:    s.SearchText,
		SortKey:   s.SortKey,
		Ascending: s.Ascending,
	}
}

// FilterAndSort derives the display list. It returns a new slice and leaves
// todos untouched. Sorting is stable; descending order flips the comparator
// so ties keep their original relative order in both directions.
func FilterAndSort(todos []model.Todo, q Query) []model.Todo {
	fold := cases.Fold()
	needle := fold.String(q.Search)

	out := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if !matchesFilter(q.Filter, t) {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(t.Title), needle) && !strings.Contains(fold.String(t.Notes), needle) {
			continue
		}
		out = append(out, t)
	}
	out = model.CopyTodos(out)

	less := compareBy(q.SortKey)
	if !q.Ascending {
		asc := less
		less = func(a, b model.Todo) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, less)
	return out
}

func matchesFilter(filter model.Filter, t model.Todo) bool {
	switch filter {
	case model.FilterActive:
		return !t.IsCompleted
	case model.FilterCompleted:
		return t.IsCompleted
	case model.FilterFavorites:
		return t.IsFavorite
	default:
		return true
	}
}

func compareBy(key model.SortKey) func(a, b model.Todo) int {
	switch key {
	case model.SortByPriority:
		return func(a, b model.Todo) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case model.SortByDueDate:
		return func(a, b model.Todo) int { return compareDue(a.DueDate, b.DueDate) }
	case model.SortByTitle:
		return func(a, b model.Todo) int { return strings.Compare(a.Title, b.Title) }
	default:
		return func(a, b model.Todo) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

// compareDue orders missing due dates after every real one.
func compareDue(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}
