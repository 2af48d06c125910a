package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"todoflow/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	doneStyle   = cellStyle.Foreground(lipgloss.Color("240"))
)

func renderTodoTable(todos []model.Todo) string {
	rows := make([][]string, 0, len(todos))
	for _, t := range todos {
		rows = append(rows, todoRow(t))
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "", "TITLE", "PRIORITY", "DUE", "CREATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(todos) && todos[row].IsCompleted {
				return doneStyle
			}
			return cellStyle
		}).
		String()
}

func todoRow(t model.Todo) []string {
	marks := "[ ]"
	if t.IsCompleted {
		marks = "[x]"
	}
	if t.IsFavorite {
		marks += "*"
	}
	due := "-"
	if t.DueDate != nil {
		due = t.DueDate.Format(dueLayout)
	}
	return []string{
		shortID(t.ID),
		marks,
		t.Title,
		string(t.Priority),
		due,
		t.CreatedAt.Local().Format("2006-01-02 15:04"),
	}
}

func renderStatistics(st model.Statistics) string {
	rows := [][]string{
		{"total", fmt.Sprint(st.Total)},
		{"completed", fmt.Sprint(st.Completed)},
		{"active", fmt.Sprint(st.Active)},
		{"completion", fmt.Sprintf("%.1f%%", st.CompletionRate)},
		{"high priority active", fmt.Sprint(st.HighPriorityActive)},
		{"favorites", fmt.Sprint(st.Favorites)},
		{"favorites completed", fmt.Sprint(st.FavoriteCompleted)},
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		String()
}

func newStatsCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				st := s.d.State()
				if st.Statistics == nil {
					return fmt.Errorf("statistics unavailable")
				}
				fmt.Fprintln(out(cmd), renderStatistics(*st.Statistics))
				return nil
			})
		},
	}
}

func newExportCmd(a *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every todo to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, a, func(s *session) error {
				return writeTodos(out(cmd), s.d.State().Todos, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "json|yaml|toml")
	return cmd
}

// tomlExport wraps the list because a TOML document must be a table.
type tomlExport struct {
	Todos []model.Todo `toml:"todos"`
}

func writeTodos(w io.Writer, todos []model.Todo, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(todos)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(todos); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(tomlExport{Todos: todos})
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or toml)", format)
	}
}
