package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteGraphStore keeps every graph as one row of the graphs table. The
// schema_yaml column holds the same YAML document as the file backend.
type SQLiteGraphStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteGraphStore opens (or creates) the database at dbPath.
func NewSQLiteGraphStore(dbPath string) (*SQLiteGraphStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening graph database: %w", err)
	}
	// Writes are serialized by SQLite; one connection keeps appends ordered.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to graph database: %w", err)
	}

	store := &SQLiteGraphStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing graph database: %w", err)
	}
	return store, nil
}

func (s *SQLiteGraphStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS graphs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		schema_yaml TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// Close closes the database.
func (s *SQLiteGraphStore) Close() error {
	return s.db.Close()
}

// ListGraphs returns all graphs ordered by id.
func (s *SQLiteGraphStore) ListGraphs() ([]models.GraphRef, error) {
	rows, err := s.db.Query(`SELECT id, name, description, created_at, updated_at FROM graphs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	defer rows.Close()

	var refs []models.GraphRef
	for rows.Next() {
		ref, err := scanRef(rows)
		if err != nil {
			return nil, fmt.Errorf("listing graphs: %w", err)
		}
		refs = append(refs, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	return refs, nil
}

// GetGraph returns one graph's manifest.
func (s *SQLiteGraphStore) GetGraph(id string) (*models.GraphRef, error) {
	row := s.db.QueryRow(`SELECT id, name, description, created_at, updated_at FROM graphs WHERE id = ?`, id)
	ref, err := scanRef(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("getting graph %s: %w", id, ErrGraphNotFound)
		}
		return nil, fmt.Errorf("getting graph %s: %w", id, err)
	}
	return ref, nil
}

// CreateGraph inserts a graph with empty text.
func (s *SQLiteGraphStore) CreateGraph(ref models.GraphRef, schema *models.Schema) error {
	if err := ValidateGraphRef(ref); err != nil {
		return err
	}
	if schema == nil {
		schema = &models.Schema{}
	}
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}
	data, err := MarshalSchema(schema)
	if err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}

	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = s.now().UTC()
	}
	if ref.Name == "" {
		ref.Name = ref.ID
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM graphs WHERE id = ?`, ref.ID).Scan(&n); err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}
	if n > 0 {
		return fmt.Errorf("creating graph %s: %w", ref.ID, ErrGraphExists)
	}

	ts := formatTime(ref.CreatedAt)
	_, err = s.db.Exec(`INSERT INTO graphs (id, name, description, text, schema_yaml, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?, ?)`, ref.ID, ref.Name, ref.Description, string(data), ts, ts)
	if err != nil {
		return fmt.Errorf("creating graph %s: %w", ref.ID, err)
	}
	return nil
}

// LoadText returns the graph's CNL text.
func (s *SQLiteGraphStore) LoadText(id string) (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT text FROM graphs WHERE id = ?`, id).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("loading text of %s: %w", id, ErrGraphNotFound)
		}
		return "", fmt.Errorf("loading text of %s: %w", id, err)
	}
	return text, nil
}

// SaveText replaces the graph's CNL text.
func (s *SQLiteGraphStore) SaveText(id, text string) error {
	return s.update(id, "text", text)
}

// AppendText appends fragment inside one transaction.
func (s *SQLiteGraphStore) AppendText(id, fragment string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("appending to %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var text string
	if err := tx.QueryRow(`SELECT text FROM graphs WHERE id = ?`, id).Scan(&text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("appending to %s: %w", id, ErrGraphNotFound)
		}
		return fmt.Errorf("appending to %s: %w", id, err)
	}
	if _, err := tx.Exec(`UPDATE graphs SET text = ?, updated_at = ? WHERE id = ?`,
		core.AppendFragment(text, fragment), formatTime(s.now()), id); err != nil {
		return fmt.Errorf("appending to %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("appending to %s: %w", id, err)
	}
	return nil
}

// LoadSchema decodes and validates the stored schema.
func (s *SQLiteGraphStore) LoadSchema(id string) (*models.Schema, error) {
	var data string
	err := s.db.QueryRow(`SELECT schema_yaml FROM graphs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loading schema of %s: %w", id, ErrGraphNotFound)
		}
		return nil, fmt.Errorf("loading schema of %s: %w", id, err)
	}
	if data == "" {
		return &models.Schema{}, nil
	}
	schema, err := ParseSchema([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("loading schema of %s: %w", id, err)
	}
	return schema, nil
}

// SaveSchema validates and stores the schema.
func (s *SQLiteGraphStore) SaveSchema(id string, schema *models.Schema) error {
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("saving schema of %s: %w", id, err)
	}
	data, err := MarshalSchema(schema)
	if err != nil {
		return fmt.Errorf("saving schema of %s: %w", id, err)
	}
	return s.update(id, "schema_yaml", string(data))
}

func (s *SQLiteGraphStore) update(id, column, value string) error {
	// column is always a literal from this file.
	res, err := s.db.Exec(`UPDATE graphs SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating %s of %s: %w", column, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s of %s: %w", column, id, err)
	}
	if n == 0 {
		return fmt.Errorf("updating %s of %s: %w", column, id, ErrGraphNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRef(r rowScanner) (*models.GraphRef, error) {
	var ref models.GraphRef
	var created, updated string
	if err := r.Scan(&ref.ID, &ref.Name, &ref.Description, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if ref.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", ref.ID, err)
	}
	if ref.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at of %s: %w", ref.ID, err)
	}
	return &ref, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
