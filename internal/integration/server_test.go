package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/observability"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

const remoteText = "# Alice (id: p1) [Person]\nhas age: 31\n<knows> Bob\n# Bob (id: p2) [Person]\nhas age: 40"

func newTestServer(t *testing.T) (*httptest.Server, *storage.FileGraphStore) {
	t.Helper()
	store := storage.NewFileGraphStore(t.TempDir())
	require.NoError(t, store.CreateGraph(models.GraphRef{ID: "people"}, storage.DefaultSchema()))
	require.NoError(t, store.SaveText("people", remoteText))

	srv := NewFragmentServer(ServerConfig{
		Graphs:       store,
		Schemas:      NewSchemaWatcher(store, nil, nil),
		Metrics:      observability.NewCollector("cnl"),
		MaxScanLines: core.DefaultMaxScanLines,
		Version:      "test",
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func TestFragmentServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)
	client := NewHTTPClient(ts.URL, 5*time.Second, nil)

	health, err := client.CheckServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, ProtocolVersion.String(), health.Protocol)
}

func TestHTTPClient_FetchFragment(t *testing.T) {
	ts, _ := newTestServer(t)
	client := NewHTTPClient(ts.URL+"/", 5*time.Second, nil)
	ctx := context.Background()

	got, err := client.FetchFragment(ctx, core.FragmentRequest{GraphID: "people", NodeID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "# Alice (id: p1) [Person]\nhas age: 31\n<knows> Bob", got)

	got, err = client.FetchFragment(ctx, core.FragmentRequest{GraphID: "people", NodeID: "zz", NodeName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "# Bob (id: p2) [Person]\nhas age: 40", got)

	_, err = client.FetchFragment(ctx, core.FragmentRequest{GraphID: "people", NodeID: "nobody"})
	assert.ErrorIs(t, err, core.ErrFragmentNotFound)

	_, err = client.FetchFragment(ctx, core.FragmentRequest{GraphID: "ghost", NodeID: "p1"})
	assert.ErrorIs(t, err, core.ErrFragmentNotFound)
}

func TestHTTPClient_GraphSource(t *testing.T) {
	ts, store := newTestServer(t)
	require.NoError(t, store.CreateGraph(models.GraphRef{ID: "empty"}, nil))
	client := NewHTTPClient(ts.URL, 5*time.Second, nil)

	ids, err := client.GraphIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "people"}, ids)

	text, err := client.GraphText(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, remoteText, text)

	candidates, err := core.FindCandidateGraphs(context.Background(), client, "local", "p2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, candidates)
}

func TestHTTPClient_CandidateDiscoveryHonoursCancel(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		writeJSON(w, http.StatusOK, []models.GraphRef{{ID: "people"}})
	}))
	defer ts.Close()
	client := NewHTTPClient(ts.URL, 5*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := core.FindCandidateGraphs(ctx, client, "local", "p1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNetwork)

	_, err = client.GraphText(ctx, "people")
	assert.ErrorIs(t, err, core.ErrNetwork)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestHTTPClient_NetworkErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	_, err := NewHTTPClient(failing.URL, time.Second, nil).
		FetchFragment(context.Background(), core.FragmentRequest{GraphID: "g", NodeID: "1"})
	assert.ErrorIs(t, err, core.ErrNetwork)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = NewHTTPClient(url, time.Second, nil).
		FetchFragment(context.Background(), core.FragmentRequest{GraphID: "g", NodeID: "1"})
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestHTTPClient_NoRetries(t *testing.T) {
	calls := 0
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer flaky.Close()

	_, err := NewHTTPClient(flaky.URL, time.Second, nil).
		FetchFragment(context.Background(), core.FragmentRequest{GraphID: "g", NodeID: "1"})
	assert.ErrorIs(t, err, core.ErrNetwork)
	assert.Equal(t, 1, calls)
}

func TestHTTPClient_IncompatibleServer(t *testing.T) {
	old := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Protocol: "9.0.0"})
	}))
	defer old.Close()

	_, err := NewHTTPClient(old.URL, time.Second, nil).CheckServer(context.Background())
	assert.ErrorIs(t, err, ErrIncompatibleServer)
}

func TestFragmentServer_Suggest(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(SuggestRequest{Text: "# Alice [Person]\nhas ", Line: 1, Column: 4})
	resp, err := http.Post(ts.URL+"/graphs/people/suggest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out SuggestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, models.SlotAttribute, out.Context.Slot)
	assert.Equal(t, "Person", out.Context.EnclosingNodeType)

	var labels []string
	for _, s := range out.Suggestions {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{"age", "born", "website"}, labels)

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	text, _ := io.ReadAll(mresp.Body)
	assert.Contains(t, string(text), `cnl_suggestions_total{slot="attribute"} 1`)
}

func TestFragmentServer_SuggestRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/graphs/people/suggest", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, _ := json.Marshal(SuggestRequest{Text: "x", Line: -1})
	resp, err = http.Post(ts.URL+"/graphs/people/suggest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, _ = json.Marshal(SuggestRequest{Text: "x"})
	resp, err = http.Post(ts.URL+"/graphs/ghost/suggest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFragmentServer_ListGraphsEmpty(t *testing.T) {
	srv := NewFragmentServer(ServerConfig{
		Graphs:  storage.NewFileGraphStore(t.TempDir()),
		Schemas: NewSchemaWatcher(storage.NewFileGraphStore(t.TempDir()), nil, nil),
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are not served without a collector")
}

func TestFragmentServer_ListenAndServeStopsOnCancel(t *testing.T) {
	srv := NewFragmentServer(ServerConfig{
		Graphs:  storage.NewFileGraphStore(t.TempDir()),
		Schemas: NewSchemaWatcher(storage.NewFileGraphStore(t.TempDir()), nil, nil),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
