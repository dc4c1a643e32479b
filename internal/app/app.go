// Package app assembles the driven adapters and core services for one
// project. Driving adapters (CLI, MCP) receive the result.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/cellstore/internal/adapters/driven/config/file"
	"github.com/custodia-labs/cellstore/internal/adapters/driven/editor"
	"github.com/custodia-labs/cellstore/internal/adapters/driven/remote"
	"github.com/custodia-labs/cellstore/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cellstore/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/services"
	"github.com/custodia-labs/cellstore/internal/logger"
)

// DefaultProjectPath is used when no project is given.
const DefaultProjectPath = "board.cells"

// Options selects what to open.
type Options struct {
	// ProjectPath is the project's metadata store file.
	ProjectPath string

	// ConfigDir holds config.toml. Empty means ~/.cellstore.
	ConfigDir string

	// NeedProject opens the store and builds the cell services. Without it
	// only configuration is available.
	NeedProject bool

	// Interactive hands the terminal to external editors.
	Interactive bool

	// Launcher starts editors. Nil means child processes.
	Launcher driven.EditorLauncher

	// Fetcher downloads remote content. Nil means rate-limited HTTP.
	Fetcher driven.RemoteFetcher
}

// App holds the services for one open project.
type App struct {
	Config   driven.ConfigStore
	Settings *services.SettingsService

	// The remaining fields are nil unless the project was opened.
	Store    *sqlite.Store
	Cache    *services.LazyCache
	Cells    *services.CellService
	History  *services.HistoryService
	Edit     *services.Reconciler
	Traces   *services.TraceService
	Transfer *services.TransferService
}

// Open loads configuration and, when asked, the project.
func Open(ctx context.Context, opts Options) (*App, error) {
	var cfg driven.ConfigStore
	fileCfg, err := file.NewConfigStore(opts.ConfigDir)
	switch {
	case err == nil:
		cfg = fileCfg
	case opts.ConfigDir == "" && !errors.Is(err, file.ErrMalformed):
		// No usable home directory: run on defaults without persisting.
		logger.Warn("config: %v; using defaults", err)
		cfg = memory.NewConfigStore()
	default:
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a := &App{
		Config:   cfg,
		Settings: services.NewSettingsService(cfg),
	}
	if !opts.NeedProject {
		return a, nil
	}

	settings, err := a.Settings.Get()
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", cfg.Path(), err)
	}

	if opts.ProjectPath == "" {
		opts.ProjectPath = DefaultProjectPath
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = remote.NewHTTPFetcher(settings.Remote.RequestsPerSecond)
	}
	store, err := sqlite.NewStore(opts.ProjectPath, sqlite.WithRemoteFetcher(fetcher))
	if err != nil {
		return nil, err
	}
	a.Store = store

	journal, err := services.NewJournal(settings.Journal.Retention)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.Cache = services.NewLazyCache(store, settings.Cache.Capacity)
	if err := a.Cache.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading cells: %w", err)
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = editor.NewProcessLauncher()
	}

	a.Cells = services.NewCellService(store, journal, a.Cache)
	a.History = services.NewHistoryService(store, journal, a.Cache)
	a.Edit = services.NewReconciler(store, a.Cells, launcher, services.ReconcilerOptions{
		PollInterval:  settings.Reconciler.PollInterval,
		EditorCommand: settings.Editor.Command,
		Interactive:   opts.Interactive,
	})
	a.Traces = services.NewTraceService(store.TraceStore(), store)
	a.Transfer = services.NewTransferService(store)

	logger.Debug("app: project %s open (retention %d, cache %d)",
		opts.ProjectPath, settings.Journal.Retention, settings.Cache.Capacity)
	return a, nil
}

// Close releases the project store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
