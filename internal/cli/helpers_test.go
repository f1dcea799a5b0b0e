package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/integration"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

const (
	localGraphText  = "# Alice (id: p1) [Person]\nhas age: 31\n# Acme (id: o1) [Organization]"
	remoteGraphText = "# Alice (id: p1) [Person]\n<works at> Acme\nhas born: 1990-04-01\n# Paris (id: c1) [Place]"
)

// setupWorkspace points the package-level services at a fresh file store
// and restores the previous values when the test ends.
func setupWorkspace(t *testing.T) *storage.FileGraphStore {
	t.Helper()

	origBase, origConfig := BasePath, Config
	origStore, origSource, origSchemas := Store, LocalSource, Schemas
	origCandidates, origFetcher, origEvents := Candidates, Fetcher, Events
	origCollector := Collector
	t.Cleanup(func() {
		BasePath, Config = origBase, origConfig
		Store, LocalSource, Schemas = origStore, origSource, origSchemas
		Candidates, Fetcher, Events = origCandidates, origFetcher, origEvents
		Collector = origCollector
	})

	dir := t.TempDir()
	store := storage.NewFileGraphStore(dir)
	src := storage.NewGraphSource(store)

	BasePath = dir
	Config = core.DefaultGlobalConfig()
	Store = store
	LocalSource = src
	Schemas = src
	Candidates = nil
	Fetcher = integration.NewStoreFetcher(store)
	Events = nil
	Collector = nil
	return store
}

func createTestGraph(t *testing.T, store storage.GraphStore, id, text string) {
	t.Helper()
	if err := store.CreateGraph(models.GraphRef{ID: id}, storage.DefaultSchema()); err != nil {
		t.Fatalf("creating graph %s: %v", id, err)
	}
	if text == "" {
		return
	}
	if err := store.SaveText(id, text); err != nil {
		t.Fatalf("saving text of %s: %v", id, err)
	}
}

// runCommand calls cmd.RunE directly and returns everything it printed.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}
