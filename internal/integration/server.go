package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/observability"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"go.uber.org/zap"
)

// GraphReader is the read side of a graph store.
type GraphReader interface {
	ListGraphs() ([]models.GraphRef, error)
	LoadText(graphID string) (string, error)
}

// ServerConfig wires a FragmentServer.
type ServerConfig struct {
	Graphs  GraphReader
	Schemas core.SchemaProvider
	// Metrics may be nil, in which case /metrics is not served.
	Metrics      *observability.Collector
	Logger       *zap.Logger
	MaxScanLines int
	Version      string
}

// FragmentServer serves node fragments and suggestions over HTTP so other
// workspaces can import from this one.
type FragmentServer struct {
	cfg      ServerConfig
	validate *validator.Validate
}

// NewFragmentServer creates a server. Graphs and Schemas are required.
func NewFragmentServer(cfg ServerConfig) *FragmentServer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &FragmentServer{cfg: cfg, validate: validator.New()}
}

// SuggestRequest is the body of POST /graphs/{graphID}/suggest.
type SuggestRequest struct {
	Text   string `json:"text"`
	Line   int    `json:"line" validate:"min=0"`
	Column int    `json:"column" validate:"min=0"`
}

// SuggestResponse is the reply to a suggest request.
type SuggestResponse struct {
	Context     models.ContextView  `json:"context"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// Handler builds the router.
func (s *FragmentServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Route("/graphs", func(r chi.Router) {
		r.Get("/", s.listGraphs)
		r.Route("/{graphID}", func(r chi.Router) {
			r.Get("/cnl", s.graphText)
			r.Get("/nodes/{nodeID}/cnl", s.nodeFragment)
			r.Post("/suggest", s.suggest)
		})
	})
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *FragmentServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("fragment server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.cfg.Logger.Info("fragment server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	}
}

func (s *FragmentServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.cfg.Version,
		Protocol: ProtocolVersion.String(),
	})
}

func (s *FragmentServer) listGraphs(w http.ResponseWriter, _ *http.Request) {
	refs, err := s.cfg.Graphs.ListGraphs()
	if err != nil {
		s.fail(w, err)
		return
	}
	if refs == nil {
		refs = []models.GraphRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *FragmentServer) graphText(w http.ResponseWriter, r *http.Request) {
	text, err := s.cfg.Graphs.LoadText(chi.URLParam(r, "graphID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeText(w, http.StatusOK, text)
}

func (s *FragmentServer) nodeFragment(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphID")
	nodeID := chi.URLParam(r, "nodeID")
	text, err := s.cfg.Graphs.LoadText(graphID)
	if err != nil {
		s.fail(w, err)
		return
	}
	block := core.ExtractBlock(text, nodeID, r.URL.Query().Get("name"))
	if block == "" {
		writeText(w, http.StatusNotFound, fmt.Sprintf("node %s not found in graph %s", nodeID, graphID))
		return
	}
	writeText(w, http.StatusOK, block)
}

func (s *FragmentServer) suggest(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphID")

	var req SuggestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFragmentBytes)).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	schema, err := s.cfg.Schemas.Schema(graphID)
	if err != nil {
		s.fail(w, err)
		return
	}

	start := time.Now()
	ctx, suggestions := core.SuggestAt(req.Text, models.Position{Line: req.Line, Column: req.Column}, *schema, s.cfg.MaxScanLines)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveSuggest(string(ctx.Slot.Kind()), time.Since(start))
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Context: ctx.View(), Suggestions: suggestions})
}

func (s *FragmentServer) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrGraphNotFound) {
		writeText(w, http.StatusNotFound, err.Error())
		return
	}
	s.cfg.Logger.Error("request failed", zap.Error(err))
	writeText(w, http.StatusInternalServerError, "internal error")
}

// observe logs every request and records its metrics under the matched
// route pattern.
func (s *FragmentServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		d := time.Since(start)

		s.cfg.Logger.Debug("http request",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", d),
		)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ObserveHTTP(r.Method, route, strconv.Itoa(status), d)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
