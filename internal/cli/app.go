// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/config"
	"github.com/jeranaias/shraga-tui/internal/credential"
	"github.com/jeranaias/shraga-tui/internal/feedback"
	"github.com/jeranaias/shraga-tui/internal/flows"
	"github.com/jeranaias/shraga-tui/internal/history"
	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/session"
	"github.com/jeranaias/shraga-tui/internal/turn"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds the client components every command works with.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Out receives command output; Err receives diagnostics.
	Out io.Writer
	Err io.Writer

	Store    credential.Accessor
	Client   *api.Client
	Catalog  *flows.Catalog
	History  *history.Cache
	Runner   *turn.Runner
	Sessions *session.Manager
	Feedback *feedback.Orchestrator
	Marks    *feedback.Marks

	watcher *credential.Watcher
	closers []func() error
}

// NewApp opens the credential store named by cfg and wires the client
// components around it. SHRAGA_AUTH (cfg.Auth.Credential) takes the place
// of the store when set.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.Auth.Credential != "" {
		return NewAppWithStore(cfg, logger, credential.Static(cfg.Auth.Credential)), nil
	}

	path, err := cfg.StorePath()
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	store, err := credential.OpenSQLite(path, cfg.Auth.TTL())
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}

	app := NewAppWithStore(cfg, logger, store)
	app.closers = append(app.closers, store.Close)
	return app, nil
}

// NewAppWithStore wires the client components around store.
func NewAppWithStore(cfg *config.Config, logger *slog.Logger, store credential.Accessor) *App {
	logger = logging.OrDefault(logger)

	client := api.NewClient(cfg.Server.BaseURL, store).
		WithTimeout(cfg.Server.RequestTimeout()).
		WithRateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst).
		WithLogger(logger)

	catalog := flows.NewCatalog(client, logger)
	cache := history.NewCache(client, store, logger)
	runner := turn.NewRunner(client, cfg.Server.TurnTimeout(), logger)
	sessions := session.NewManager(runner, cache, catalog, logger)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Out:      os.Stdout,
		Err:      os.Stderr,
		Store:    store,
		Client:   client,
		Catalog:  catalog,
		History:  cache,
		Runner:   runner,
		Sessions: sessions,
		Feedback: feedback.New(client, logger),
		Marks:    feedback.NewMarks(),
	}
	app.closers = append(app.closers, func() error {
		sessions.Close()
		return nil
	})
	return app
}

// WatchStore refreshes the session list whenever another process changes
// the credential jar. It is a no-op for fixed credentials or when
// disabled in the config.
func (a *App) WatchStore(ctx context.Context) error {
	store, ok := a.Store.(*credential.SQLiteStore)
	if !ok || !a.Config.Auth.WatchStore || a.watcher != nil {
		return nil
	}

	w, err := credential.Watch(ctx, store.Path(), credential.DefaultDebounce, func() {
		rctx, cancel := context.WithTimeout(ctx, a.Config.Server.RequestTimeout())
		defer cancel()
		if err := a.Sessions.RefreshHistory(rctx); err != nil {
			a.Logger.Warn("history refresh after credential change failed", "error", err)
		}
	}, a.Logger)
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, w.Close)
	return nil
}

// Close releases the store, watcher and session manager.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// requestContext bounds a one-shot backend call by the request timeout.
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := a.Config.Server.RequestTimeout()
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.Out, args...)
}
