package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"todoflow/app"
	"todoflow/config"
	"todoflow/store"
	"todoflow/tui"
)

// App carries the persistent flag values shared by every command.
type App struct {
	ConfigFile string
	Store      string
	Path       string
	LogLevel   string
	LogFile    string

	// gateway and now replace the configured store and clock in tests.
	gateway app.Gateway
	now     func() time.Time
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todoflow",
		Short:         "Todo list manager (TUI + scriptable CLI)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  todoflow

  # Scriptable commands
  todoflow add "Buy milk" --priority high --due 2026-03-01
  todoflow list --filter active --sort dueDate
  todoflow done 3f2a
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			return runTUI(cmd, a)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.ConfigFile, "config", "c", "", "config file (default is $HOME/.todoflow.yaml or ./.todoflow.yaml)")
	cmd.PersistentFlags().StringVar(&a.Store, "store", "", "storage driver (json|sqlite|memory)")
	cmd.PersistentFlags().StringVar(&a.Path, "path", "", "data file path")
	cmd.PersistentFlags().StringVar(&a.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&a.LogFile, "log-file", "", "write logs to this file")

	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newDoneCmd(a))
	cmd.AddCommand(newFavCmd(a))
	cmd.AddCommand(newEditCmd(a))
	cmd.AddCommand(newRmCmd(a))
	cmd.AddCommand(newBulkCmd(a, "clear-completed", "Delete every completed todo", app.ClearCompleted{}))
	cmd.AddCommand(newBulkCmd(a, "complete-all", "Mark every todo completed", app.MarkAllAsCompleted{}))
	cmd.AddCommand(newBulkCmd(a, "reopen-all", "Mark every todo active", app.MarkAllAsActive{}))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newExportCmd(a))

	return cmd
}

// session is one loaded dispatcher plus the resources behind it.
type session struct {
	d       *app.Dispatcher
	logger  *slog.Logger
	closers []func() error
}

// openSession resolves config, builds the logger and gateway, and loads the
// list through OnAppear before returning.
func openSession(cmd *cobra.Command, a *App) (*session, error) {
	cfg, err := config.Load(a.ConfigFile, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}
	s := &session{}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s.logger = logger
	s.closers = append(s.closers, closeLog)

	gw := a.gateway
	if gw == nil {
		var closeGw func() error
		gw, closeGw, err = openGateway(cmd.Context(), cfg, logger)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		s.closers = append(s.closers, closeGw)
	}

	opts := []app.Option{app.WithLogger(logger)}
	if a.now != nil {
		opts = append(opts, app.WithClock(a.now))
	}
	s.d = app.NewDispatcher(app.NewReducer(gw, opts...), cfg.InitialState(), app.WithDispatcherLogger(logger))
	s.d.Send(app.OnAppear{})
	s.d.Wait()
	logger.Debug("session opened", "driver", cfg.Store.Driver, "todos", len(s.d.State().Todos))
	return s, nil
}

// send dispatches actions in order and reports the first error message the
// reducer leaves in state.
func (s *session) send(actions ...app.Action) error {
	for _, a := range actions {
		s.d.Send(a)
		if msg := s.d.State().ErrorMessage; msg != "" {
			s.d.Send(app.ClearError{})
			return errors.New(msg)
		}
	}
	return nil
}

// commit waits for autosaves, then saves once more so a failure is reported.
func (s *session) commit() error {
	s.d.Wait()
	s.d.Send(app.SaveTodos{})
	s.d.Wait()
	if msg := s.d.State().ErrorMessage; msg != "" {
		s.d.Send(app.ClearError{})
		return errors.New(msg)
	}
	return nil
}

func (s *session) close() error {
	if s.d != nil {
		s.d.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withSession runs fn against a freshly loaded session and always closes it.
func withSession(cmd *cobra.Command, a *App, fn func(s *session) error) (err error) {
	s, err := openSession(cmd, a)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := fn(s); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

func newLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	if cfg.Log.File == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(h), f.Close, nil
}

func openGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.Gateway, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryGateway(), noop, nil
	case "sqlite":
		path := cfg.Store.Path
		if filepath.Ext(path) == ".json" {
			path = strings.TrimSuffix(path, ".json") + ".db"
		}
		g, err := store.OpenSQLite(ctx, path, logger)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return store.NewFileGateway(cfg.Store.Path, store.WithLogger(logger)), noop, nil
	}
}

func runTUI(cmd *cobra.Command, a *App) error {
	s, err := openSession(cmd, a)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.close()
	return tui.Run(s.d, s.logger, cmd.InOrStdin(), cmd.OutOrStdout())
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
