package cli

import (
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/integration"
	"github.com/valter-silva-au/cnl-graph/internal/observability"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

// Workspace services, set during app initialization in app.go.
var (
	BasePath      string
	Config        *models.GlobalConfig
	Logger        *zap.Logger
	WorkspaceInit core.WorkspaceInitializer

	Store       storage.GraphStore
	LocalSource *storage.GraphSource
	Schemas     core.SchemaProvider
	Watcher     *integration.SchemaWatcher

	// Candidates lists the graphs searched when importing a node's context:
	// the remote fragment server when remote.url is set, else the local store.
	Candidates core.GraphTextSource
	Fetcher    core.RemoteFragmentFetcher
	Remote     *integration.HTTPClient
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	Events      core.EventLogger
	MetricsCalc observability.MetricsCalculator
	Collector   *observability.Collector
)

func logger() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

func maxScanLines() int {
	if Config == nil {
		return core.DefaultMaxScanLines
	}
	return Config.MaxScanLines
}
