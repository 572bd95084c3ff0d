package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/pschleger/workflow-canvas-sub000/appconfig"
	"github.com/pschleger/workflow-canvas-sub000/history"
	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/settings"
	"github.com/pschleger/workflow-canvas-sub000/storage"
)

// App carries the wiring shared by every command.
type App struct {
	ctx    context.Context
	out    io.Writer
	logger logging.Logger

	settingsStore storage.Store
	sessionStore  storage.Store

	settings *settings.Provider
	history  *history.Store
	closers  []func() error
}

func newApp(ctx context.Context, out io.Writer, logger logging.Logger, settingsStore, sessionStore storage.Store) *App {
	return &App{
		ctx:           ctx,
		out:           out,
		logger:        logging.Normalize(logger),
		settingsStore: settingsStore,
		sessionStore:  sessionStore,
	}
}

// openApp builds the durable settings store and the session store named by
// cfg. Connections are opened lazily on first use.
func openApp(ctx context.Context, cfg *appconfig.Config, out io.Writer, logger logging.Logger) (*App, error) {
	app := newApp(ctx, out, logger, nil, nil)
	dbs := map[string]*sql.DB{}
	openDB := func(path string) (*sql.DB, error) {
		if db, ok := dbs[path]; ok {
			return db, nil
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		dbs[path] = db
		app.closers = append(app.closers, db.Close)
		return db, nil
	}

	db, err := openDB(cfg.Settings.SQLitePath)
	if err != nil {
		return nil, err
	}
	settingsStore, err := storage.NewSQLiteStore(db, cfg.Settings.Table)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.settingsStore = settingsStore

	var session storage.Store
	switch cfg.Session.Backend {
	case appconfig.BackendMemory:
		session = storage.NewMemoryStore()
	case appconfig.BackendSQLite:
		db, err := openDB(cfg.Session.SQLitePath)
		if err != nil {
			app.Close()
			return nil, err
		}
		store, err := storage.NewSQLiteStore(db, cfg.Session.Table)
		if err != nil {
			app.Close()
			return nil, err
		}
		session = store
	case appconfig.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr, DB: cfg.Session.RedisDB})
		app.closers = append(app.closers, client.Close)
		session = storage.NewRedisStore(storage.NewGoRedisClient(client), cfg.Session.TTL)
	}
	if cfg.Session.Backend != appconfig.BackendMemory {
		session = storage.Retrying(session, storage.RetryPolicy{
			Attempts:   cfg.Session.Retries,
			Backoff:    25 * time.Millisecond,
			MaxBackoff: 250 * time.Millisecond,
			Logger:     app.logger,
		})
	}
	app.sessionStore = storage.Namespaced(session, cfg.Session.ID)

	logging.WithFields(app.logger, map[string]any{
		"session_id": cfg.Session.ID,
		"backend":    cfg.Session.Backend,
	}).Debug("fsmcanvas: stores ready")
	return app, nil
}

// Settings returns the initialized settings provider.
func (a *App) Settings() *settings.Provider {
	if a.settings == nil {
		a.settings = settings.NewProvider(a.settingsStore, settings.WithLogger(a.logger))
		a.settings.Init(a.ctx)
	}
	return a.settings
}

// History returns the initialized timeline store of the session.
func (a *App) History() *history.Store {
	if a.history == nil {
		a.history = history.NewStore(a.sessionStore, a.Settings(), history.WithLogger(a.logger))
		a.history.Init(a.ctx)
	}
	return a.history
}

func (a *App) printJSON(value any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("fsmcanvas: close failed: %v", err)
		}
	}
	a.closers = nil
}
