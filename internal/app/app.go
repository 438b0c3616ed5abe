// Package app wires the debug coordinator to its configuration, logging,
// persistence and debug adapter, and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/debugstate/internal/config"
	"github.com/dshills/debugstate/internal/integration/debug"
	"github.com/dshills/debugstate/internal/integration/debug/adapters"
	"github.com/dshills/debugstate/internal/integration/debug/persist"
)

// Application owns one coordinator and everything around it.
type Application struct {
	mu sync.Mutex

	config *config.Config
	log    *logrus.Logger
	logOut io.Closer

	loop  *debug.Loop
	store persist.Store

	session     *debug.Session
	stopWatch   context.CancelFunc
	shutdown    bool
	shutdownErr error
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty means the
	// default location.
	ConfigPath string

	// Config is used instead of loading ConfigPath when set.
	Config *config.Config

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput overrides the configured log destination when set.
	LogOutput io.Writer
}

// New creates an Application and restores persisted breakpoints and
// watch expressions.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, NewComponentError("config", "load", err)
		}
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	app := &Application{config: cfg}
	if err := app.bootstrap(opts); err != nil {
		app.closeResources()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap(opts Options) error {
	// 1. Logging
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
		if app.config.Log.File != "" {
			if err := os.MkdirAll(filepath.Dir(app.config.Log.File), 0o755); err != nil {
				return NewComponentError("log", "create directory", err)
			}
			f, err := os.OpenFile(app.config.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return NewComponentError("log", "open file", err)
			}
			out = f
			app.logOut = f
		}
	}
	lc := DefaultLoggerConfig()
	lc.Level = ParseLogLevel(app.config.Log.Level)
	lc.Output = out
	lc.JSON = app.config.Log.Format == "json"
	app.log = NewLogger(lc)

	// 2. Coordinator and loop
	dc := app.config.Debug
	coord := debug.NewCoordinator(
		debug.WithLogger(WithComponent(app.log, "coordinator")),
		debug.WithMaxOutputEntries(dc.MaxOutputEntries),
		debug.WithChildCacheSize(dc.ChildCacheSize),
	)
	app.loop = debug.NewLoop(coord,
		debug.WithLoopQueueSize(dc.LoopQueueSize),
		debug.WithLoopLogger(WithComponent(app.log, "loop")),
	)
	if err := app.loop.Start(); err != nil {
		return NewComponentError("loop", "start", err)
	}

	// 3. Store
	store, err := persist.Open(app.config.Store.Backend, app.config.Store.Path,
		persist.WithLogger(WithComponent(app.log, "store")))
	if err != nil {
		return NewComponentError("store", "open", err)
	}
	app.store = store

	ctx := context.Background()
	st, err := store.Load(ctx)
	if err != nil {
		return NewComponentError("store", "load", err)
	}
	if err := app.loop.Do(ctx, func(c *debug.Coordinator) { c.Restore(st) }); err != nil {
		return NewComponentError("loop", "restore", err)
	}

	// 4. External edits of the state file
	if fs, ok := store.(*persist.FileStore); ok && app.config.Store.Watch {
		wctx, cancel := context.WithCancel(ctx)
		if err := fs.Watch(wctx, app.reloadState); err != nil {
			cancel()
			return NewComponentError("store", "watch", err)
		}
		app.stopWatch = cancel
	}

	app.log.WithField("store", app.config.Store.Backend).Debug("application started")
	return nil
}

func (app *Application) reloadState(st debug.PersistedState) {
	err := app.loop.Submit(func(c *debug.Coordinator) {
		if c.IsDebugging() {
			// Breakpoints in a live session stay authoritative.
			return
		}
		c.Restore(st)
	})
	if err != nil {
		app.log.WithError(err).Warn("reloading debug state")
	}
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() logrus.FieldLogger {
	return app.log
}

// Loop returns the loop that serializes coordinator access.
func (app *Application) Loop() *debug.Loop {
	return app.loop
}

// Store returns the persistence backend.
func (app *Application) Store() persist.Store {
	return app.store
}

// Do runs fn on the coordinator loop and waits for it.
func (app *Application) Do(ctx context.Context, fn func(*debug.Coordinator)) error {
	return app.loop.Do(ctx, fn)
}

// SessionConfig derives the session configuration from the config file.
func (app *Application) SessionConfig() debug.SessionConfig {
	sc := debug.DefaultSessionConfig()
	if app.config.Adapter.ID != "" {
		sc.AdapterID = app.config.Adapter.ID
	}
	sc.StackDepth = app.config.Debug.StackDepth
	sc.RequestTimeout = app.config.Debug.RequestTimeout.Duration
	return sc
}

// adapterCommand returns the configured adapter command, or the command of
// the preset named by the adapter ID.
func (app *Application) adapterCommand() ([]string, error) {
	ac := app.config.Adapter
	if len(ac.Command) > 0 {
		return ac.Command, nil
	}
	p, ok := adapters.Lookup(ac.ID)
	if !ok {
		return nil, fmt.Errorf("unknown adapter %q", ac.ID)
	}
	return p.Resolve()
}

// LaunchMode returns the configured launch mode, or the adapter preset's
// default when none is set.
func (app *Application) LaunchMode() string {
	if app.config.Adapter.Mode != "" {
		return app.config.Adapter.Mode
	}
	if p, ok := adapters.Lookup(app.config.Adapter.ID); ok {
		return p.Mode
	}
	return ""
}

// StartSession connects to the configured adapter. An address takes
// precedence over a command.
func (app *Application) StartSession(ctx context.Context, opts ...debug.SessionOption) (*debug.Session, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.shutdown {
		return nil, ErrShutdown
	}
	if app.session != nil {
		return nil, ErrSessionActive
	}

	all := append([]debug.SessionOption{
		debug.WithSessionConfig(app.SessionConfig()),
		debug.WithSessionLogger(WithComponent(app.log, "session")),
	}, opts...)

	var (
		s   *debug.Session
		err error
	)
	if addr := app.config.Adapter.Address; addr != "" {
		s, err = debug.NewSocketSession(ctx, app.loop, addr, all...)
	} else {
		var command []string
		if command, err = app.adapterCommand(); err == nil {
			s, err = debug.NewStdioSession(app.loop, command[0], command[1:], all...)
		}
	}
	if err != nil {
		return nil, NewComponentError("session", "start", err)
	}
	app.session = s
	return s, nil
}

// EndSession closes the active session and resets the coordinator's
// session data. Breakpoints and watches are kept and saved.
func (app *Application) EndSession(ctx context.Context) error {
	app.mu.Lock()
	s := app.session
	app.session = nil
	app.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}

	var errs ErrorList
	errs.Add(s.Close())
	errs.Add(app.loop.Do(ctx, func(c *debug.Coordinator) {
		c.ResetDebugSession()
	}))
	errs.Add(app.Save(ctx))
	return errs.AsError()
}

// Save writes breakpoints and watch expressions to the store.
func (app *Application) Save(ctx context.Context) error {
	var st debug.PersistedState
	if err := app.loop.Do(ctx, func(c *debug.Coordinator) { st = c.Persisted() }); err != nil {
		return NewComponentError("loop", "snapshot", err)
	}
	if err := app.store.Save(ctx, st); err != nil {
		return NewComponentError("store", "save", err)
	}
	return nil
}

// Shutdown ends any session, saves state and releases resources. It is
// safe to call more than once.
func (app *Application) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	if app.shutdown {
		app.mu.Unlock()
		return app.shutdownErr
	}
	app.shutdown = true
	s := app.session
	app.session = nil
	app.mu.Unlock()

	var errs ErrorList
	if s != nil {
		dctx, cancel := context.WithTimeout(ctx, app.config.Debug.RequestTimeout.Duration)
		err := s.Disconnect(dctx, true)
		cancel()
		if err != nil {
			app.log.WithError(err).Debug("disconnect on shutdown")
		}
		errs.Add(s.Close())
	}
	errs.Add(app.Save(ctx))
	errs.Add(app.closeResources())

	app.mu.Lock()
	app.shutdownErr = errs.AsError()
	app.mu.Unlock()
	return app.shutdownErr
}

func (app *Application) closeResources() error {
	var errs ErrorList
	if app.stopWatch != nil {
		app.stopWatch()
	}
	if app.loop != nil {
		if err := app.loop.Close(); err != nil && !errors.Is(err, debug.ErrLoopNotRunning) {
			errs.Add(NewComponentError("loop", "close", err))
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			errs.Add(NewComponentError("store", "close", err))
		}
	}
	if app.logOut != nil {
		errs.Add(app.logOut.Close())
	}
	return errs.AsError()
}

