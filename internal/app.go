// Package internal provides the App struct that wires all components of the
// cnl workspace together and initializes the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/cnl-graph/internal/cli"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/integration"
	"github.com/valter-silva-au/cnl-graph/internal/observability"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

// EventLogFileName is the JSONL event log kept in the workspace root.
const EventLogFileName = ".cnl_events.jsonl"

// App holds all service dependencies of a cnl workspace.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig
	Logger    *zap.Logger

	// Storage layer
	Store  storage.GraphStore
	Source *storage.GraphSource

	// Core services
	WorkspaceInit core.WorkspaceInitializer
	Schemas       core.SchemaProvider

	// Integration services
	Watcher    *integration.SchemaWatcher
	Remote     *integration.HTTPClient
	Fetcher    core.RemoteFragmentFetcher
	Candidates core.GraphTextSource

	// Observability
	EventLog    observability.EventLog
	Collector   *observability.Collector
	Events      core.EventLogger
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components of a cnl workspace rooted at
// basePath (the directory holding .cnlconfig).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// --- Storage layer ---
	app.Store, err = storage.OpenGraphStore(cfg, basePath)
	if err != nil {
		return nil, fmt.Errorf("opening graph store: %w", err)
	}
	app.Source = storage.NewGraphSource(app.Store)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, EventLogFileName)
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable the event log if it can't be created.
		app.Logger.Warn("event log disabled", zap.String("path", eventLogPath), zap.Error(err))
		app.EventLog = nil
	}
	app.Collector = observability.NewCollector("cnl")
	app.Events = observability.NewRecorder(app.EventLog, app.Collector)
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	// --- Core services ---
	app.WorkspaceInit = core.NewWorkspaceInitializer()
	app.Watcher = integration.NewSchemaWatcher(app.Store, app.Events, app.Logger)
	app.Schemas = app.Watcher

	// --- Integration services ---
	if cfg.RemoteURL != "" {
		app.Remote = integration.NewHTTPClient(cfg.RemoteURL, cfg.RemoteTimeout, app.Logger)
		app.Fetcher = app.Remote
		app.Candidates = app.Remote
	} else {
		app.Fetcher = integration.NewStoreFetcher(app.Store)
		app.Candidates = app.Source
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Logger = app.Logger
	cli.WorkspaceInit = app.WorkspaceInit

	cli.Store = app.Store
	cli.LocalSource = app.Source
	cli.Schemas = app.Schemas
	cli.Watcher = app.Watcher
	cli.Fetcher = app.Fetcher
	cli.Candidates = app.Candidates
	cli.Remote = app.Remote

	cli.EventLog = app.EventLog
	cli.Events = app.Events
	cli.MetricsCalc = app.MetricsCalc
	cli.Collector = app.Collector

	return app, nil
}

// Close releases resources held by the App: the event log file handle and
// the graph store. It is safe to call Close on a partially wired App.
func (a *App) Close() error {
	var errs []error
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event log: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing graph store: %w", err))
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync() // Sync fails on some terminals; nothing to do about it.
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the workspace root. It checks the CNL_HOME env
// var, then walks up from the current directory looking for .cnlconfig or
// .cnlconfig.yaml, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("CNL_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}
