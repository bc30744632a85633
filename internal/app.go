package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/mcpserver"
	"github.com/starford/jotpad/internal/models"
	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/storage"
	"github.com/starford/jotpad/internal/theme"
)

// App holds the components every command works with.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   kvstore.Store
	Session *session.Session
	Theme   *theme.Panel
	Exports *storage.FS
}

// watcher is implemented by stores that can report writes from other processes.
type watcher interface {
	Watch(ctx context.Context) error
}

// Open builds the store, session and theme panel described by the options
// and loads the persisted state.
func Open(ctx context.Context, opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	return app.open(ctx)
}

func (app *application) open(ctx context.Context) (*App, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := kvstore.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	exports, err := storage.NewFS(cfg.Export.Dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init export dir: %w", err)
	}

	view := app.view
	if view == nil {
		view = session.NopView{}
	}
	sess := session.New(store,
		session.WithView(view),
		session.WithLogger(logger),
		session.WithSaveDelay(cfg.Editor.SaveDelay),
		session.WithPreviewLength(cfg.Editor.PreviewLength),
	)
	if err := sess.Load(ctx); err != nil {
		// The default note lives on in memory; the next save retries.
		logger.Warn("app: initial note not persisted", slog.String("error", err.Error()))
	}

	panel := theme.New(store, app.document, logger)
	panel.Load(ctx)

	logger.Debug("app: opened",
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.Int("notes", len(sess.Notes())))

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Session: sess,
		Theme:   panel,
		Exports: exports,
	}, nil
}

// Watch follows writes from other instances until ctx is cancelled. Stores
// without cross-process support return immediately.
func (a *App) Watch(ctx context.Context) error {
	a.Theme.Watch(ctx)
	w, ok := a.Store.(watcher)
	if !ok {
		a.Logger.Debug("app: store has no cross-process watch", slog.String("driver", a.Config.Store.Driver))
		return nil
	}
	return w.Watch(ctx)
}

// Close flushes pending edits and releases the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Session.Close(ctx), a.Store.Close())
}

// ExportCurrent writes the current note to the export directory and
// returns the file path.
func (a *App) ExportCurrent() (string, error) {
	exp, err := a.Session.ExportCurrentNote()
	if err != nil {
		return "", err
	}
	return a.Exports.Export(exp)
}

// SetTheme validates and stores t.
func (a *App) SetTheme(ctx context.Context, t models.Theme) error {
	if err := theme.Validate(t); err != nil {
		return fmt.Errorf("invalid theme %q: %w", t, err)
	}
	return a.Theme.Save(ctx, t)
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they
// never mix with the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	a, err := Open(ctx, append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := a.Watch(watchCtx); err != nil {
			a.Logger.Error("app: watch failed", slog.String("error", err.Error()))
		}
	}()

	a.Logger.Info("mcp: serving on stdio")
	return mcpserver.New(a.Session, a.Theme, a.Exports).ServeStdio()
}
