package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"todoflow/model"
)

// SQLiteGateway keeps the todo list in a single-table SQLite database.
// Save replaces the whole list in one transaction, so the last write wins.
type SQLiteGateway struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteGateway, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite registers itself as "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	logger.Debug("sqlite store opened", "path", path)
	return &SQLiteGateway{db: db, logger: logger}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			due_date TEXT,
			notes TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_todos_position ON todos(position);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

func (g *SQLiteGateway) Load(ctx context.Context) ([]model.Todo, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT id, title, is_completed, is_favorite, priority, created_at, completed_at, due_date, notes
		FROM todos ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Todo{}
	for rows.Next() {
		var (
			id, title, priority, createdAt, notes string
			completed, favorite                   bool
			completedAt, dueDate                  sql.NullString
		)
		if err := rows.Scan(&id, &title, &completed, &favorite, &priority, &createdAt, &completedAt, &dueDate, &notes); err != nil {
			return nil, err
		}
		t := model.Todo{
			Title:       title,
			IsCompleted: completed,
			IsFavorite:  favorite,
			Priority:    model.Priority(priority),
			Notes:       notes,
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("todo %q: %w", id, err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("todo %s created_at: %w", id, err)
		}
		if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, fmt.Errorf("todo %s completed_at: %w", id, err)
		}
		if t.DueDate, err = parseNullTime(dueDate); err != nil {
			return nil, fmt.Errorf("todo %s due_date: %w", id, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (g *SQLiteGateway) Save(ctx context.Context, todos []model.Todo) (err error) {
	if err := checkUniqueIDs(todos); err != nil {
		return err
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO todos
		(id, position, title, is_completed, is_favorite, priority, created_at, completed_at, due_date, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range todos {
		if _, err = stmt.ExecContext(ctx,
			t.ID.String(), i, t.Title, t.IsCompleted, t.IsFavorite, string(t.Priority),
			formatTime(t.CreatedAt), formatNullTime(t.CompletedAt), formatNullTime(t.DueDate), t.Notes,
		); err != nil {
			return fmt.Errorf("insert todo %s: %w", t.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	g.logger.Debug("sqlite store saved", "count", len(todos))
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var errDuplicateID = errors.New("duplicate todo id")

// checkUniqueIDs guards the primary key before a transaction starts so a
// bad snapshot fails with a readable error instead of a constraint code.
func checkUniqueIDs(todos []model.Todo) error {
	seen := make(map[uuid.UUID]struct{}, len(todos))
	for _, t := range todos {
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
