// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of the chat components from configuration.

package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/backend"
	"github.com/jeranaias/calmchat/internal/config"
	"github.com/jeranaias/calmchat/internal/keepalive"
	"github.com/jeranaias/calmchat/internal/localstore"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/session"
	"github.com/jeranaias/calmchat/internal/storage"
	"github.com/jeranaias/calmchat/internal/telemetry"
	"github.com/jeranaias/calmchat/internal/ui/styles"
)

// AppOptions tweak NewApp.
type AppOptions struct {
	// Verbose forces debug logging.
	Verbose bool

	// Logger replaces the file logger (tests).
	Logger *zerolog.Logger
}

// App holds every long-lived component of one calmchat process.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *telemetry.Metrics

	Backend *backend.Client
	Auth    *auth.LocalProvider
	Store   storage.Store
	State   *localstore.FileStore
	Quota   *quota.Tracker
	Themes  *styles.ThemeStore

	db        *sql.DB
	logCloser io.Closer
	keepalive *keepalive.Scheduler
	server    *telemetry.Server
}

// NewApp opens the local database, the history store and the state
// directory, and builds the backend client. Close releases everything.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{Config: cfg, Metrics: telemetry.NewMetrics()}

	if opts.Logger != nil {
		a.Logger = *opts.Logger
	} else {
		logFile, err := cfg.LogFile()
		if err != nil {
			return nil, err
		}
		level := cfg.Logging.Level
		if opts.Verbose {
			level = "debug"
		}
		logger, closer, err := telemetry.NewLogger(telemetry.LogConfig{Level: level, File: logFile})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
		a.Logger, a.logCloser = logger, closer
	}

	if err := config.EnsureConfigDir(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	dir, err := config.ConfigDir()
	if err != nil {
		a.Close()
		return nil, err
	}

	dbPath, err := cfg.SQLitePath()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db, err = storage.OpenSQLite(dbPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Store, err = storage.Open(ctx, storage.Options{
		Driver:      cfg.Storage.Driver,
		SQLite:      a.db,
		DatabaseURL: cfg.Storage.DatabaseURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open chat history store: %w", err)
	}

	a.State = localstore.NewFileStore(dir)
	a.Quota = quota.NewTracker(a.State, a.Logger)
	a.Quota.SetObserver(a.Metrics.SetQuotaRemaining)
	a.Metrics.SetQuotaRemaining(a.Quota.Remaining())

	sessionPath, err := config.SessionPath()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Auth, err = auth.NewLocalProvider(auth.Config{
		DB:          a.db,
		SessionPath: sessionPath,
		Logger:      a.Logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Auth.OnLogin(func(context.Context, auth.User) error {
		return a.Quota.Reset()
	})

	fallback, err := styles.ParseMode(cfg.UI.Theme)
	if err != nil {
		fallback = styles.ModeDark
	}
	a.Themes = styles.NewThemeStore(a.State, fallback)

	a.Backend = backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:  cfg.Backend.URL,
		Timeout:  cfg.BackendTimeout(),
		Logger:   a.Logger,
		Observer: a.Metrics,
	})

	a.Logger.Debug().
		Str("backend", cfg.Backend.URL).
		Str("storage", cfg.Storage.Driver).
		Msg("APP_READY")
	return a, nil
}

// NewController builds a chat controller that renders through p.
func (a *App) NewController(p session.Presenter) (*session.Controller, error) {
	return session.NewController(session.Config{
		Gateway:     a.Backend,
		Quota:       a.Quota,
		Auth:        a.Auth,
		Store:       a.Store,
		Presenter:   p,
		SendTimeout: a.Config.BackendTimeout(),
		Logger:      a.Logger,
		Observer:    a.Metrics,
	})
}

// StartBackground starts the keepalive pings (when enabled) and the metrics
// server (when an address is configured). It returns the bound metrics
// address, or "".
func (a *App) StartBackground(ctx context.Context) (string, error) {
	if a.Config.Keepalive.Enabled && a.keepalive == nil {
		a.keepalive = keepalive.New(a.Backend, keepalive.Config{
			Interval:     a.Config.KeepaliveInterval(),
			StartupProbe: a.Config.Keepalive.StartupProbe,
			Timeout:      a.Config.BackendTimeout(),
			Logger:       a.Logger,
			Observer:     a.Metrics,
		})
		a.keepalive.Start(ctx)
	}

	if a.Config.Telemetry.MetricsAddr == "" || a.server != nil {
		return "", nil
	}
	a.server = telemetry.NewServer(a.Metrics, a.Logger)
	addr, err := a.server.Start(a.Config.Telemetry.MetricsAddr)
	if err != nil {
		a.server = nil
		return "", fmt.Errorf("failed to start metrics server: %w", err)
	}
	return addr, nil
}

// Close stops background work and releases the databases and the log file.
func (a *App) Close() error {
	var errs []error

	if a.keepalive != nil {
		a.keepalive.Stop()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	a.Logger.Debug().Msg("APP_CLOSED")
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
