package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	graphsDirName    = "graphs"
	manifestFileName = "graph.yaml"
	textFileName     = "graph.cnl"
	schemaFileName   = "schema.yaml"
	lockFileName     = ".lock"
)

// FileGraphStore keeps each graph in its own directory:
//
//	graphs/<id>/graph.yaml   manifest
//	graphs/<id>/graph.cnl    CNL text
//	graphs/<id>/schema.yaml  schema snapshot
type FileGraphStore struct {
	basePath string
	now      func() time.Time
}

// NewFileGraphStore creates a store rooted at basePath. Directories are
// created lazily.
func NewFileGraphStore(basePath string) *FileGraphStore {
	return &FileGraphStore{basePath: basePath, now: time.Now}
}

// GraphsDir is the directory holding one subdirectory per graph.
func (s *FileGraphStore) GraphsDir() string {
	return filepath.Join(s.basePath, graphsDirName)
}

func (s *FileGraphStore) graphDir(id string) string {
	return filepath.Join(s.GraphsDir(), id)
}

func (s *FileGraphStore) file(id, name string) string {
	return filepath.Join(s.graphDir(id), name)
}

// ListGraphs discovers graph manifests and returns them sorted by id.
func (s *FileGraphStore) ListGraphs() ([]models.GraphRef, error) {
	dir := s.GraphsDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), path.Join("*", manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}

	refs := make([]models.GraphRef, 0, len(matches))
	for _, m := range matches {
		ref, err := s.readManifest(filepath.Join(dir, filepath.FromSlash(m)))
		if err != nil {
			return nil, fmt.Errorf("listing graphs: %w", err)
		}
		refs = append(refs, *ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// GetGraph returns the manifest of one graph.
func (s *FileGraphStore) GetGraph(id string) (*models.GraphRef, error) {
	ref, err := s.readManifest(s.file(id, manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("getting graph %s: %w", id, err)
	}
	return ref, nil
}

// CreateGraph writes the manifest, an empty text file and the schema.
func (s *FileGraphStore) CreateGraph(ref models.GraphRef, schema *models.Schema) error {
	if err := ValidateGraphRef(ref); err != nil {
		return err
	}
	if schema == nil {
		schema = &models.Schema{}
	}
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}

	dir := s.graphDir(ref.ID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, ErrGraphExists)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}

	now := s.now().UTC()
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = now
	}
	ref.UpdatedAt = ref.CreatedAt
	if ref.Name == "" {
		ref.Name = ref.ID
	}

	if err := s.writeManifest(&ref); err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}
	if err := os.WriteFile(s.file(ref.ID, textFileName), nil, 0o644); err != nil {
		return fmt.Errorf("creating graph %s: writing text: %w", ref.ID, err)
	}
	if err := s.writeSchema(ref.ID, schema); err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}
	return nil
}

// LoadText returns the graph's CNL text.
func (s *FileGraphStore) LoadText(id string) (string, error) {
	if err := s.exists(id); err != nil {
		return "", fmt.Errorf("loading text of %s: %w", id, err)
	}
	data, err := os.ReadFile(s.file(id, textFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("loading text of %s: %w", id, err)
	}
	return string(data), nil
}

// SaveText replaces the graph's CNL text.
func (s *FileGraphStore) SaveText(id, text string) error {
	return s.withLock(id, func() error {
		return s.writeText(id, text)
	})
}

// AppendText appends fragment under the graph lock, so concurrent appends
// from other processes are serialized and each lands whole.
func (s *FileGraphStore) AppendText(id, fragment string) error {
	return s.withLock(id, func() error {
		data, err := os.ReadFile(s.file(id, textFileName))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("appending to %s: %w", id, err)
		}
		return s.writeText(id, core.AppendFragment(string(data), fragment))
	})
}

// LoadSchema reads and validates the graph's schema.
func (s *FileGraphStore) LoadSchema(id string) (*models.Schema, error) {
	if err := s.exists(id); err != nil {
		return nil, fmt.Errorf("loading schema of %s: %w", id, err)
	}
	data, err := os.ReadFile(s.SchemaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Schema{}, nil
		}
		return nil, fmt.Errorf("loading schema of %s: %w", id, err)
	}
	schema, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("loading schema of %s: %w", id, err)
	}
	return schema, nil
}

// SaveSchema validates and writes the graph's schema.
func (s *FileGraphStore) SaveSchema(id string, schema *models.Schema) error {
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("saving schema of %s: %w", id, err)
	}
	return s.withLock(id, func() error {
		return s.writeSchema(id, schema)
	})
}

// SchemaPath is the schema file of a graph. The schema watcher observes it.
func (s *FileGraphStore) SchemaPath(id string) string {
	return s.file(id, schemaFileName)
}

// Close is a no-op for the file store.
func (s *FileGraphStore) Close() error { return nil }

func (s *FileGraphStore) exists(id string) error {
	if !graphIDPattern.MatchString(id) {
		return ErrGraphNotFound
	}
	if _, err := os.Stat(s.file(id, manifestFileName)); err != nil {
		if os.IsNotExist(err) {
			return ErrGraphNotFound
		}
		return err
	}
	return nil
}

func (s *FileGraphStore) withLock(id string, fn func() error) error {
	if err := s.exists(id); err != nil {
		return fmt.Errorf("locking %s: %w", id, err)
	}
	unlock, err := lockFile(s.file(id, lockFileName))
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	if err := fn(); err != nil {
		return err
	}
	return s.touch(id)
}

func (s *FileGraphStore) writeText(id, text string) error {
	if err := writeFileAtomic(s.file(id, textFileName), []byte(text)); err != nil {
		return fmt.Errorf("writing text of %s: %w", id, err)
	}
	return nil
}

func (s *FileGraphStore) writeSchema(id string, schema *models.Schema) error {
	data, err := MarshalSchema(schema)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.SchemaPath(id), data); err != nil {
		return fmt.Errorf("writing schema: %w", err)
	}
	return nil
}

func (s *FileGraphStore) readManifest(p string) (*models.GraphRef, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrGraphNotFound
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var ref models.GraphRef
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", p, err)
	}
	return &ref, nil
}

func (s *FileGraphStore) writeManifest(ref *models.GraphRef) error {
	data, err := yaml.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}
	if err := writeFileAtomic(s.file(ref.ID, manifestFileName), data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func (s *FileGraphStore) touch(id string) error {
	ref, err := s.readManifest(s.file(id, manifestFileName))
	if err != nil {
		return err
	}
	ref.UpdatedAt = s.now().UTC()
	return s.writeManifest(ref)
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it over name.
func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), name)
}
