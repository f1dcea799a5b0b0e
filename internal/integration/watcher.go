package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

// SchemaLoader reads a graph's schema from storage.
type SchemaLoader interface {
	LoadSchema(graphID string) (*models.Schema, error)
}

const (
	schemaFileName = "schema.yaml"
	reloadDebounce = 200 * time.Millisecond
)

// SchemaWatcher serves schema snapshots and swaps them when a graph's
// schema.yaml changes on disk. Readers never block: the snapshot table is
// replaced wholesale on every change. A reload that fails validation keeps
// the previous snapshot.
//
// Snapshots are only cached while Watch is running. Without a watch every
// call goes to the loader, so schema edits are visible on the next request.
type SchemaWatcher struct {
	loader SchemaLoader
	events core.EventLogger
	logger *zap.Logger

	snapshots atomic.Pointer[map[string]*models.Schema]
	writeMu   sync.Mutex
	watching  atomic.Bool

	timersMu sync.Mutex
	timers   map[string]*time.Timer
	debounce time.Duration
}

// NewSchemaWatcher creates a watcher. events and logger may be nil.
func NewSchemaWatcher(loader SchemaLoader, events core.EventLogger, logger *zap.Logger) *SchemaWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &SchemaWatcher{
		loader:   loader,
		events:   events,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		debounce: reloadDebounce,
	}
	empty := map[string]*models.Schema{}
	w.snapshots.Store(&empty)
	return w
}

var _ core.SchemaProvider = (*SchemaWatcher)(nil)

// Schema returns the current snapshot. While watching, the snapshot is
// loaded on first use and then kept until a reload swaps it.
func (w *SchemaWatcher) Schema(graphID string) (*models.Schema, error) {
	if !w.watching.Load() {
		return w.loader.LoadSchema(graphID)
	}
	if s, ok := (*w.snapshots.Load())[graphID]; ok {
		return s, nil
	}
	s, err := w.loader.LoadSchema(graphID)
	if err != nil {
		return nil, err
	}
	w.store(graphID, s)
	return s, nil
}

// Watching reports whether a Watch loop is active.
func (w *SchemaWatcher) Watching() bool {
	return w.watching.Load()
}

// Reload re-reads one graph's schema and swaps the snapshot.
func (w *SchemaWatcher) Reload(graphID string) error {
	s, err := w.loader.LoadSchema(graphID)
	if err != nil {
		w.logger.Warn("schema reload failed, keeping previous snapshot",
			zap.String("graph_id", graphID), zap.Error(err))
		w.logEvent(core.EventSchemaReloadFailed, map[string]any{"graph_id": graphID, "error": err.Error()})
		return fmt.Errorf("reloading schema of %s: %w", graphID, err)
	}
	w.store(graphID, s)
	w.logger.Info("schema reloaded",
		zap.String("graph_id", graphID),
		zap.Int("node_types", len(s.NodeTypes)),
		zap.Int("relation_types", len(s.RelationTypes)),
		zap.Int("attribute_types", len(s.AttributeTypes)),
	)
	w.logEvent(core.EventSchemaReloaded, map[string]any{"graph_id": graphID})
	return nil
}

func (w *SchemaWatcher) store(graphID string, s *models.Schema) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	cur := *w.snapshots.Load()
	next := make(map[string]*models.Schema, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[graphID] = s
	w.snapshots.Store(&next)
}

// Watch observes graphsDir/<id>/schema.yaml until ctx is done. It returns
// once the watches are in place.
func (w *SchemaWatcher) Watch(ctx context.Context, graphsDir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating schema watcher: %w", err)
	}
	if err := os.MkdirAll(graphsDir, 0o755); err != nil {
		fw.Close()
		return fmt.Errorf("creating %s: %w", graphsDir, err)
	}
	if err := fw.Add(graphsDir); err != nil {
		fw.Close()
		return fmt.Errorf("watching %s: %w", graphsDir, err)
	}
	entries, err := os.ReadDir(graphsDir)
	if err != nil {
		fw.Close()
		return fmt.Errorf("reading %s: %w", graphsDir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(fw, filepath.Join(graphsDir, e.Name()))
		}
	}

	w.watching.Store(true)
	go w.loop(ctx, fw, graphsDir)
	return nil
}

func (w *SchemaWatcher) addDir(fw *fsnotify.Watcher, dir string) {
	if err := fw.Add(dir); err != nil {
		w.logger.Warn("failed to watch graph directory", zap.String("dir", dir), zap.Error(err))
	}
}

func (w *SchemaWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, graphsDir string) {
	defer fw.Close()
	defer w.stopWatching()
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Dir(ev.Name) == filepath.Clean(graphsDir) {
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						w.addDir(fw, ev.Name)
					}
				}
				continue
			}
			if filepath.Base(ev.Name) != schemaFileName {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule(filepath.Base(filepath.Dir(ev.Name)))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("schema watcher error", zap.Error(err))
		}
	}
}

// schedule debounces bursts of writes into one reload per graph.
func (w *SchemaWatcher) schedule(graphID string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()
	if t, ok := w.timers[graphID]; ok {
		t.Stop()
	}
	w.timers[graphID] = time.AfterFunc(w.debounce, func() {
		_ = w.Reload(graphID)
	})
}

// stopWatching drops every cached snapshot so later reads hit the loader.
func (w *SchemaWatcher) stopWatching() {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.watching.Store(false)
	empty := map[string]*models.Schema{}
	w.snapshots.Store(&empty)
}

func (w *SchemaWatcher) stopTimers() {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *SchemaWatcher) logEvent(eventType string, data map[string]any) {
	if w.events == nil {
		return
	}
	if err := w.events.LogEvent(eventType, data); err != nil {
		w.logger.Warn("failed to record event", zap.String("type", eventType), zap.Error(err))
	}
}
