package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"todoflow/model"
)

const (
	documentVersion    = 1
	maxRotatingBackups = 10
)

var (
	errNoValidBackup   = errors.New("no valid backup found")
	errInvalidDocument = errors.New("invalid todo document")

	validate = validator.New()
)

// document is the on-disk shape of the JSON file.
type document struct {
	Version int          `json:"version"`
	SavedAt time.Time    `json:"savedAt"`
	Todos   []model.Todo `json:"todos" validate:"dive"`
}

// FileGateway persists todos as a JSON document.
// Saves are atomic (temp file + rename) and keep a latest .bak copy plus a
// rotating set of timestamped backups used for recovery on load.
type FileGateway struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

type FileOption func(*FileGateway)

// WithFs swaps the filesystem, e.g. afero.NewMemMapFs() in tests.
func WithFs(fsys afero.Fs) FileOption {
	return func(g *FileGateway) {
		if fsys != nil {
			g.fs = fsys
		}
	}
}

func WithLogger(logger *slog.Logger) FileOption {
	return func(g *FileGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewFileGateway(path string, opts ...FileOption) *FileGateway {
	g := &FileGateway{
		fs:     afero.NewOsFs(),
		path:   path,
		logger: slog.New(slog.DiscardHandler),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *FileGateway) Path() string {
	return g.path
}

// Load reads the todo list. A missing file is an empty list. A corrupt file
// is moved aside and replaced by the newest valid backup, or by an empty
// document when no backup decodes.
func (g *FileGateway) Load(ctx context.Context) ([]model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	todos, msg, err := g.loadWithRecovery()
	if err != nil {
		return nil, err
	}
	if msg != "" {
		g.logger.Warn(msg, "path", g.path)
	}
	return todos, nil
}

// Save autosaves the list, rotating backups of the previous file first.
func (g *FileGateway) Save(ctx context.Context, todos []model.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.autosave(todos); err != nil {
		return fmt.Errorf("save %s: %w", g.path, err)
	}
	return nil
}

func (g *FileGateway) load(path string) ([]model.Todo, error) {
	data, err := afero.ReadFile(g.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Todo{}, nil
		}
		return nil, err
	}
	return decodeDocument(data)
}

func (g *FileGateway) loadWithRecovery() ([]model.Todo, string, error) {
	todos, err := g.load(g.path)
	if err == nil {
		return todos, "", nil
	}
	if !isCorruptStateError(err) {
		return nil, "", err
	}

	corruptPath, moveErr := g.moveCorruptFile()
	if moveErr != nil {
		return nil, "", fmt.Errorf("move corrupt file: %w", moveErr)
	}

	recovered, backupPath, backupErr := g.loadLatestValidBackup()
	if backupErr == nil {
		if err := g.writeJSON(g.path, recovered); err != nil {
			return nil, "", fmt.Errorf("restore backup: %w", err)
		}
		msg := fmt.Sprintf("corrupt todo file recovered from %s", filepath.Base(backupPath))
		if corruptPath != "" {
			msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
		}
		return recovered, msg, nil
	}
	if !errors.Is(backupErr, errNoValidBackup) {
		return nil, "", fmt.Errorf("inspect backups: %w", backupErr)
	}

	empty := []model.Todo{}
	if err := g.writeJSON(g.path, empty); err != nil {
		return nil, "", fmt.Errorf("reset corrupt file: %w", err)
	}
	msg := "corrupt todo file without a valid backup; starting empty"
	if corruptPath != "" {
		msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
	}
	return empty, msg, nil
}

func (g *FileGateway) autosave(todos []model.Todo) error {
	if err := g.ensureDir(); err != nil {
		return err
	}
	if err := g.backup(); err != nil {
		return err
	}

	tmp, err := afero.TempFile(g.fs, filepath.Dir(g.path), filepath.Base(g.path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = g.fs.Remove(tmpName)
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g.newDocument(todos)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return g.fs.Rename(tmpName, g.path)
}

func (g *FileGateway) newDocument(todos []model.Todo) document {
	if todos == nil {
		todos = []model.Todo{}
	}
	return document{Version: documentVersion, SavedAt: g.now(), Todos: todos}
}

func (g *FileGateway) writeJSON(path string, todos []model.Todo) error {
	if err := g.ensureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g.newDocument(todos), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return afero.WriteFile(g.fs, path, data, 0o644)
}

func (g *FileGateway) ensureDir() error {
	return g.fs.MkdirAll(filepath.Dir(g.path), 0o755)
}

func (g *FileGateway) backup() error {
	data, err := afero.ReadFile(g.fs, g.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := afero.WriteFile(g.fs, g.path+".bak", data, 0o644); err != nil {
		return err
	}

	timestamp := g.now().Format("20060102-150405.000000000")
	rotatingPath := fmt.Sprintf("%s.bak.%s", g.path, timestamp)
	if err := afero.WriteFile(g.fs, rotatingPath, data, 0o644); err != nil {
		return err
	}
	return g.pruneRotatingBackups()
}

func (g *FileGateway) rotatingBackups() ([]string, error) {
	return afero.Glob(g.fs, g.path+".bak.*")
}

func (g *FileGateway) pruneRotatingBackups() error {
	files, err := g.rotatingBackups()
	if err != nil {
		return err
	}
	if len(files) <= maxRotatingBackups {
		return nil
	}

	sort.Strings(files)
	for _, old := range files[:len(files)-maxRotatingBackups] {
		if err := g.fs.Remove(old); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (g *FileGateway) loadLatestValidBackup() ([]model.Todo, string, error) {
	candidates := make([]string, 0, maxRotatingBackups+1)
	latest := g.path + ".bak"
	if _, err := g.fs.Stat(latest); err == nil {
		candidates = append(candidates, latest)
	}
	rotating, err := g.rotatingBackups()
	if err != nil {
		return nil, "", err
	}
	// Rotating names embed a sortable timestamp; newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(rotating)))
	candidates = append(candidates, rotating...)
	if len(candidates) == 0 {
		return nil, "", errNoValidBackup
	}

	for _, candidate := range candidates {
		data, err := afero.ReadFile(g.fs, candidate)
		if err != nil {
			continue
		}
		todos, err := decodeDocument(data)
		if err != nil {
			continue
		}
		return todos, candidate, nil
	}
	return nil, "", errNoValidBackup
}

func (g *FileGateway) moveCorruptFile() (string, error) {
	if _, err := g.fs.Stat(g.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	base := filepath.Base(g.path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	corruptName := fmt.Sprintf("%s.corrupt-%s%s", name, g.now().Format("20060102-150405"), ext)
	corruptPath := filepath.Join(filepath.Dir(g.path), corruptName)
	if err := g.fs.Rename(g.path, corruptPath); err != nil {
		return "", err
	}
	return corruptPath, nil
}

func decodeDocument(data []byte) ([]model.Todo, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidDocument, err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidDocument, err)
	}
	if doc.Todos == nil {
		doc.Todos = []model.Todo{}
	}
	return doc.Todos, nil
}

func isCorruptStateError(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errInvalidDocument)
}
