package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"todoflow/model"
	"todoflow/store"
)

var fixedNow = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, todos ...model.Todo) (*App, *store.MemoryGateway) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")
	mem := store.NewMemoryGateway(todos...)
	return &App{gateway: mem, now: func() time.Time { return fixedNow }}, mem
}

func run(t *testing.T, a *App, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func seeded(id string, title string) model.Todo {
	return model.Todo{
		ID:        uuid.MustParse(id),
		Title:     title,
		Priority:  model.PriorityMedium,
		CreatedAt: fixedNow.Add(-time.Hour),
	}
}

func TestAddThenList(t *testing.T) {
	a, mem := newTestApp(t)

	stdout, _, err := run(t, a, "add", "Buy", "milk", "--priority", "high", "--due", "2026-03-01", "--notes", "2 liters")
	require.NoError(t, err)
	assert.Contains(t, stdout, "added ")
	assert.Contains(t, stdout, "Buy milk")

	saved := mem.Snapshot()
	require.Len(t, saved, 1)
	got := saved[0]
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *got.DueDate)
	assert.Equal(t, "2 liters", got.Notes)
	assert.Equal(t, fixedNow, got.CreatedAt)

	stdout, _, err = run(t, a, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Buy milk")
	assert.Contains(t, stdout, "2026-03-01")
}

func TestAddRejectsBlankTitle(t *testing.T) {
	a, mem := newTestApp(t)

	_, stderr, err := run(t, a, "add", "   ")
	require.Error(t, err)
	assert.Equal(t, "title required", err.Error())
	assert.Contains(t, stderr, "title required")
	assert.Empty(t, mem.Snapshot())
}

func TestAddRejectsBadFlags(t *testing.T) {
	a, _ := newTestApp(t)

	_, _, err := run(t, a, "add", "x", "--priority", "urgent")
	assert.ErrorContains(t, err, "invalid priority")

	_, _, err = run(t, a, "add", "x", "--due", "tomorrow")
	assert.ErrorContains(t, err, "invalid due date")
}

func TestDoneAndFavByPrefix(t *testing.T) {
	a, mem := newTestApp(t,
		seeded("aaaaaaaa-0000-0000-0000-000000000001", "First"),
		seeded("bbbbbbbb-0000-0000-0000-000000000002", "Second"),
	)

	stdout, _, err := run(t, a, "done", "aaaa")
	require.NoError(t, err)
	assert.Contains(t, stdout, "First")

	_, _, err = run(t, a, "fav", "BBBB")
	require.NoError(t, err)

	saved := mem.Snapshot()
	assert.True(t, saved[0].IsCompleted)
	require.NotNil(t, saved[0].CompletedAt)
	assert.Equal(t, fixedNow, *saved[0].CompletedAt)
	assert.True(t, saved[1].IsFavorite)
	assert.False(t, saved[1].IsCompleted)

	stdout, _, err = run(t, a, "list", "--filter", "completed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "First")
	assert.NotContains(t, stdout, "Second")
}

func TestUnknownAndAmbiguousIDs(t *testing.T) {
	a, _ := newTestApp(t,
		seeded("abcd0000-0000-0000-0000-000000000001", "One"),
		seeded("abcd1111-0000-0000-0000-000000000002", "Two"),
	)

	_, _, err := run(t, a, "done", "ffff")
	assert.ErrorIs(t, err, errNoMatch)

	_, _, err = run(t, a, "rm", "abcd")
	assert.ErrorIs(t, err, errAmbiguous)
}

func TestEditUpdatesOnlyChangedFields(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	todo := seeded("cccccccc-0000-0000-0000-000000000003", "Draft report")
	todo.DueDate = &due
	todo.Notes = "keep me"
	a, mem := newTestApp(t, todo)

	_, _, err := run(t, a, "edit", "cccc", "--title", "  Final report  ", "--no-due")
	require.NoError(t, err)

	got := mem.Snapshot()[0]
	assert.Equal(t, "Final report", got.Title)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, "keep me", got.Notes)
	assert.Equal(t, model.PriorityMedium, got.Priority)

	_, _, err = run(t, a, "edit", "cccc", "--title", " ")
	assert.EqualError(t, err, "title required")
	assert.Equal(t, "Final report", mem.Snapshot()[0].Title)
}

func TestBulkCommands(t *testing.T) {
	a, mem := newTestApp(t,
		seeded("dddddddd-0000-0000-0000-000000000001", "One"),
		seeded("eeeeeeee-0000-0000-0000-000000000002", "Two"),
	)

	_, _, err := run(t, a, "complete-all")
	require.NoError(t, err)
	for _, td := range mem.Snapshot() {
		assert.True(t, td.IsCompleted)
	}

	_, _, err = run(t, a, "reopen-all")
	require.NoError(t, err)
	for _, td := range mem.Snapshot() {
		assert.False(t, td.IsCompleted)
		assert.Nil(t, td.CompletedAt)
	}

	_, _, err = run(t, a, "done", "dddd")
	require.NoError(t, err)
	stdout, _, err := run(t, a, "clear-completed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed 1")
	require.Len(t, mem.Snapshot(), 1)
	assert.Equal(t, "Two", mem.Snapshot()[0].Title)
}

func TestRemove(t *testing.T) {
	a, mem := newTestApp(t, seeded("ffffffff-0000-0000-0000-000000000001", "Gone"))

	_, _, err := run(t, a, "rm", "ffff")
	require.NoError(t, err)
	assert.Empty(t, mem.Snapshot())
}

func TestSaveFailureIsReported(t *testing.T) {
	a, mem := newTestApp(t, seeded("aaaaaaaa-0000-0000-0000-000000000001", "First"))
	mem.FailSave(errors.New("disk full"))

	_, _, err := run(t, a, "done", "aaaa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save failed")
	assert.Contains(t, err.Error(), "disk full")
}

func TestStatsAndExport(t *testing.T) {
	done := seeded("aaaaaaaa-0000-0000-0000-000000000001", "First")
	done.IsCompleted = true
	completedAt := fixedNow
	done.CompletedAt = &completedAt
	a, _ := newTestApp(t, done, seeded("bbbbbbbb-0000-0000-0000-000000000002", "Second"))

	stdout, _, err := run(t, a, "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "completion")
	assert.Contains(t, stdout, "50.0%")

	stdout, _, err = run(t, a, "export")
	require.NoError(t, err)
	var fromJSON []model.Todo
	require.NoError(t, json.Unmarshal([]byte(stdout), &fromJSON))
	assert.Len(t, fromJSON, 2)
	assert.Equal(t, "First", fromJSON[0].Title)

	stdout, _, err = run(t, a, "export", "--format", "yaml")
	require.NoError(t, err)
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, "Second", fromYAML[1]["title"])
	assert.Equal(t, "bbbbbbbb-0000-0000-0000-000000000002", fromYAML[1]["id"])

	stdout, _, err = run(t, a, "export", "--format", "toml")
	require.NoError(t, err)
	var fromTOML tomlExport
	require.NoError(t, toml.Unmarshal([]byte(stdout), &fromTOML))
	require.Len(t, fromTOML.Todos, 2)
	assert.Equal(t, "First", fromTOML.Todos[0].Title)
	assert.True(t, fromTOML.Todos[0].IsCompleted)
	assert.Nil(t, fromTOML.Todos[1].CompletedAt)

	_, _, err = run(t, a, "export", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestListEmptyAndDescending(t *testing.T) {
	a, _ := newTestApp(t)
	stdout, _, err := run(t, a, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no todos")

	low := seeded("11111111-0000-0000-0000-000000000001", "Alpha")
	high := seeded("22222222-0000-0000-0000-000000000002", "Beta")
	a, _ = newTestApp(t, low, high)
	stdout, _, err = run(t, a, "list", "--sort", "title", "--desc")
	require.NoError(t, err)
	assert.Less(t, bytes.Index([]byte(stdout), []byte("Beta")), bytes.Index([]byte(stdout), []byte("Alpha")))
}

func TestResolveTodo(t *testing.T) {
	todos := []model.Todo{
		seeded("12345678-0000-0000-0000-000000000001", "A"),
		seeded("12349999-0000-0000-0000-000000000002", "B"),
	}

	got, err := resolveTodo(todos, "123456")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)

	got, err = resolveTodo(todos, "12345678-0000-0000-0000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)

	_, err = resolveTodo(todos, "1234")
	assert.ErrorIs(t, err, errAmbiguous)
	_, err = resolveTodo(todos, " ")
	assert.ErrorIs(t, err, errNoMatch)
}
