package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/cnl-graph/internal/cli"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/integration"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

func TestResolveBasePath_CNLHomeSet(t *testing.T) {
	// CNL_HOME takes precedence.
	tmpDir := t.TempDir()
	t.Setenv("CNL_HOME", tmpDir)

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsConfig(t *testing.T) {
	for _, name := range []string{".cnlconfig", ".cnlconfig.yaml"} {
		t.Run(name, func(t *testing.T) {
			tmpDir := t.TempDir()
			subDir := filepath.Join(tmpDir, "sub", "nested")
			if err := os.MkdirAll(subDir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("log:\n  level: info\n"), 0o644); err != nil {
				t.Fatal(err)
			}

			origDir, _ := os.Getwd()
			defer func() { _ = os.Chdir(origDir) }()
			if err := os.Chdir(subDir); err != nil {
				t.Fatal(err)
			}
			t.Setenv("CNL_HOME", "")

			got := ResolveBasePath()
			if got != tmpDir {
				t.Errorf("ResolveBasePath() = %q, want %q (should find %s in parent)", got, tmpDir, name)
			}
		})
	}
}

func TestResolveBasePath_FallbackToCwd(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CNL_HOME", "")

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q (should fall back to cwd)", got, tmpDir)
	}
}

func TestNewApp_Success(t *testing.T) {
	tmpDir := t.TempDir()
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if app.BasePath != tmpDir {
		t.Errorf("BasePath = %q, want %q", app.BasePath, tmpDir)
	}
	if _, ok := app.Store.(*storage.FileGraphStore); !ok {
		t.Errorf("Store = %T, want the file store by default", app.Store)
	}
	if _, ok := app.Fetcher.(*integration.StoreFetcher); !ok {
		t.Errorf("Fetcher = %T, want a StoreFetcher without remote.url", app.Fetcher)
	}
	if app.Remote != nil {
		t.Error("Remote should be nil without remote.url")
	}
	if app.EventLog == nil || app.MetricsCalc == nil || app.Collector == nil || app.Events == nil {
		t.Error("observability services should be wired")
	}

	// The CLI layer sees the same services.
	if cli.Store != app.Store || cli.LocalSource != app.Source || cli.Fetcher != app.Fetcher {
		t.Error("CLI package variables not wired")
	}
	if cli.Config != app.Config || cli.Watcher != app.Watcher {
		t.Error("CLI config or watcher not wired")
	}
}

func TestNewApp_EndToEndMerge(t *testing.T) {
	tmpDir := t.TempDir()
	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	for id, text := range map[string]string{
		"local":  "# Alice (id: p1) [Person]\nhas age: 31",
		"remote": "# Alice (id: p1) [Person]\n<works at> Acme",
	} {
		if err := app.Store.CreateGraph(models.GraphRef{ID: id}, storage.DefaultSchema()); err != nil {
			t.Fatal(err)
		}
		if err := app.Store.SaveText(id, text); err != nil {
			t.Fatal(err)
		}
	}

	planner := core.NewMergePlanner(app.Fetcher, app.Events)
	local, _ := app.Store.LoadText("local")
	session, err := planner.Start(t.Context(), core.MergeRequest{NodeID: "p1", LocalText: local, RemoteGraphID: "remote"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := session.SetSelected(models.SideSource, 1, true); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Confirm(t.Context(), app.Source.Sink("local")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	text, _ := app.Store.LoadText("local")
	if !strings.HasSuffix(text, "has age: 31\n<works at> Acme") {
		t.Errorf("unexpected local text %q", text)
	}

	metrics, err := app.MetricsCalc.Calculate(time.Now().AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if metrics.MergesStarted != 1 || metrics.MergesConfirmed != 1 || metrics.LinesMerged != 1 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
}

func TestNewApp_RemoteConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := "remote:\n  url: http://peer.example:8420\n  timeout: 2s\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".cnlconfig"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if app.Remote == nil {
		t.Fatal("Remote should be set when remote.url is configured")
	}
	if app.Fetcher != app.Remote || app.Candidates != app.Remote {
		t.Error("remote client should serve both fetches and candidate discovery")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := "storage:\n  backend: cassandra\nlog:\n  level: loud\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".cnlconfig"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewApp(tmpDir)
	if err == nil {
		t.Fatal("expected error for invalid configuration")
	}
	for _, want := range []string{"storage.backend", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err.Error(), want)
		}
	}
}

func TestNewApp_SQLiteBackend(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".cnlconfig"), []byte("storage:\n  backend: sqlite\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(tmpDir)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if _, ok := app.Store.(*storage.SQLiteGraphStore); !ok {
		t.Errorf("Store = %T, want SQLite", app.Store)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "cnl.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestAppClose_NilServices(t *testing.T) {
	app := &App{}
	if err := app.Close(); err != nil {
		t.Errorf("Close() on an empty App = %v", err)
	}
}
