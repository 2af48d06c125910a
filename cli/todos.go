package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"todoflow/app"
	"todoflow/model"
)

var (
	errNoMatch   = errors.New("no todo matches")
	errAmbiguous = errors.New("ambiguous id prefix")
)

const dueLayout = "2006-01-02"

func newAddCmd(a *App) *cobra.Command {
	var (
		priority string
		due      string
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				p, err := model.ParsePriority(priority)
				if err != nil {
					return err
				}
				dueDate, err := parseDue(due)
				if err != nil {
					return err
				}
				before := idSet(s.d.State().Todos)
				if err := s.send(
					app.AddTodoButtonTapped{},
					app.NewTodoTitleChanged{Title: strings.Join(args, " ")},
					app.NewTodoPriorityChanged{Priority: p},
					app.NewTodoDueDateChanged{DueDate: dueDate},
					app.NewTodoNotesChanged{Notes: notes},
					app.SaveNewTodo{},
				); err != nil {
					return err
				}
				if err := s.commit(); err != nil {
					return err
				}
				for _, t := range s.d.State().Todos {
					if _, ok := before[t.ID]; !ok {
						fmt.Fprintf(out(cmd), "added %s %s\n", shortID(t.ID), t.Title)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "priority (low|medium|high)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newListCmd(a *App) *cobra.Command {
	var (
		filter string
		sortBy string
		desc   bool
		search string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos through the current filter, search and sort",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				if cmd.Flags().Changed("filter") {
					f, err := model.ParseFilter(filter)
					if err != nil {
						return err
					}
					s.d.Send(app.FilterOptionChanged{Filter: f})
				}
				if cmd.Flags().Changed("sort") {
					k, err := model.ParseSortKey(sortBy)
					if err != nil {
						return err
					}
					s.d.Send(app.SortOptionChanged{SortKey: k})
				}
				if desc && s.d.State().Ascending {
					s.d.Send(app.ToggleSortOrder{})
				}
				if search != "" {
					s.d.Send(app.SearchTextChanged{Text: search})
				}
				st := s.d.State()
				if len(st.DisplayList) == 0 {
					fmt.Fprintln(out(cmd), "no todos")
					return nil
				}
				fmt.Fprintln(out(cmd), renderTodoTable(st.DisplayList))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "all|active|completed|favorites")
	cmd.Flags().StringVar(&sortBy, "sort", "", "createdAt|priority|dueDate|title")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive title/notes search")
	return cmd
}

func newDoneCmd(a *App) *cobra.Command {
	return newByIDCmd(a, "done <id>", "Toggle completion of a todo", func(id uuid.UUID) app.Action {
		return app.ToggleTodo{ID: id}
	})
}

func newFavCmd(a *App) *cobra.Command {
	return newByIDCmd(a, "fav <id>", "Toggle the favorite flag of a todo", func(id uuid.UUID) app.Action {
		return app.ToggleFavorite{ID: id}
	})
}

func newRmCmd(a *App) *cobra.Command {
	cmd := newByIDCmd(a, "rm <id>", "Delete a todo", func(id uuid.UUID) app.Action {
		return app.DeleteTodo{ID: id}
	})
	cmd.Aliases = []string{"delete"}
	return cmd
}

// newByIDCmd builds a command that resolves one id prefix and dispatches
// the action built from it.
func newByIDCmd(a *App, use, short string, build func(uuid.UUID) app.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				t, err := resolveTodo(s.d.State().Todos, args[0])
				if err != nil {
					return err
				}
				if err := s.send(build(t.ID)); err != nil {
					return err
				}
				if err := s.commit(); err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "ok %s %s\n", shortID(t.ID), t.Title)
				return nil
			})
		},
	}
}

func newEditCmd(a *App) *cobra.Command {
	var (
		title    string
		priority string
		due      string
		noDue    bool
		notes    string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				t, err := resolveTodo(s.d.State().Todos, args[0])
				if err != nil {
					return err
				}
				actions := []app.Action{app.EditTodo{ID: t.ID}}
				if cmd.Flags().Changed("title") {
					actions = append(actions, app.NewTodoTitleChanged{Title: title})
				}
				if cmd.Flags().Changed("priority") {
					p, err := model.ParsePriority(priority)
					if err != nil {
						return err
					}
					actions = append(actions, app.NewTodoPriorityChanged{Priority: p})
				}
				switch {
				case noDue:
					actions = append(actions, app.NewTodoDueDateChanged{DueDate: nil})
				case cmd.Flags().Changed("due"):
					d, err := parseDue(due)
					if err != nil {
						return err
					}
					actions = append(actions, app.NewTodoDueDateChanged{DueDate: d})
				}
				if cmd.Flags().Changed("notes") {
					actions = append(actions, app.NewTodoNotesChanged{Notes: notes})
				}
				actions = append(actions, app.SaveEditTodo{})
				if err := s.send(actions...); err != nil {
					return err
				}
				if err := s.commit(); err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "updated %s\n", shortID(t.ID))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low|medium|high")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noDue, "no-due", false, "remove the due date")
	cmd.Flags().StringVar(&notes, "notes", "", "replace notes")
	cmd.MarkFlagsMutuallyExclusive("due", "no-due")
	return cmd
}

func newBulkCmd(a *App, use, short string, action app.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				before := len(s.d.State().Todos)
				if err := s.send(action); err != nil {
					return err
				}
				if err := s.commit(); err != nil {
					return err
				}
				st := s.d.State()
				if removed := before - len(st.Todos); removed > 0 {
					fmt.Fprintf(out(cmd), "removed %d\n", removed)
					return nil
				}
				fmt.Fprintf(out(cmd), "ok %d todos\n", len(st.Todos))
				return nil
			})
		},
	}
}

// resolveTodo finds the single todo whose id starts with prefix.
func resolveTodo(todos []model.Todo, prefix string) (model.Todo, error) {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return model.Todo{}, fmt.Errorf("%w: empty id", errNoMatch)
	}
	var matches []model.Todo
	for _, t := range todos {
		if strings.HasPrefix(t.ID.String(), p) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Todo{}, fmt.Errorf("%w %q", errNoMatch, prefix)
	case 1:
		return matches[0], nil
	default:
		return model.Todo{}, fmt.Errorf("%w %q (%d matches)", errAmbiguous, prefix, len(matches))
	}
}

func parseDue(s string) (*time.Time, error) {
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

func idSet(todos []model.Todo) map[uuid.UUID]struct{} {
	seen := make(map[uuid.UUID]struct{}, len(todos))
	for _, t := range todos {
		seen[t.ID] = struct{}{}
	}
	return seen
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
