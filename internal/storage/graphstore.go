package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

var (
	// ErrGraphNotFound is returned for an unknown graph id.
	ErrGraphNotFound = errors.New("graph not found")
	// ErrGraphExists is returned when creating a graph whose id is taken.
	ErrGraphExists = errors.New("graph already exists")
)

var graphIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// GraphStore persists the graphs of one workspace: a manifest, the CNL text
// and the schema snapshot of each graph.
type GraphStore interface {
	ListGraphs() ([]models.GraphRef, error)
	GetGraph(id string) (*models.GraphRef, error)
	// CreateGraph stores a new graph with empty text. A nil schema stores
	// an empty schema.
	CreateGraph(ref models.GraphRef, schema *models.Schema) error

	LoadText(id string) (string, error)
	SaveText(id, text string) error
	// AppendText appends a fragment to the graph's text in one write.
	AppendText(id, fragment string) error

	LoadSchema(id string) (*models.Schema, error)
	SaveSchema(id string, schema *models.Schema) error

	Close() error
}

// ValidateGraphRef checks a manifest before it is stored.
func ValidateGraphRef(ref models.GraphRef) error {
	if err := validate.Struct(ref); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid graph: %s", formatFieldError(verrs[0]))
		}
		return fmt.Errorf("invalid graph: %w", err)
	}
	return nil
}

var (
	_ GraphStore = (*FileGraphStore)(nil)
	_ GraphStore = (*SQLiteGraphStore)(nil)
)

// OpenGraphStore opens the backend selected by cfg. Relative SQLite paths
// are resolved against basePath.
func OpenGraphStore(cfg *models.GlobalConfig, basePath string) (GraphStore, error) {
	switch cfg.StorageBackend {
	case models.BackendFile, "":
		return NewFileGraphStore(basePath), nil
	case models.BackendSQLite:
		dbPath := cfg.SQLitePath
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(basePath, dbPath)
		}
		return NewSQLiteGraphStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
