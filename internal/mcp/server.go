// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the CNL engine as MCP tools for AI assistants editing graphs.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/internal/observability"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// GraphCatalog lists graphs and reads their text.
type GraphCatalog interface {
	ListGraphs() ([]models.GraphRef, error)
	LoadText(graphID string) (string, error)
}

// SinkProvider returns the append target of a graph.
type SinkProvider interface {
	Sink(graphID string) core.TextSink
}

// Deps are the services the MCP tools call into. Metrics may be nil if
// observability is disabled. Nodes may be nil, in which case node ids are
// only matched through id markers.
type Deps struct {
	Graphs       GraphCatalog
	Sources      core.GraphTextSource
	Schemas      core.SchemaProvider
	Nodes        core.NodeProvider
	Fetcher      core.RemoteFragmentFetcher
	Sinks        SinkProvider
	Events       core.EventLogger
	Metrics      observability.MetricsCalculator
	MaxScanLines int
}

// maxTrackedDocuments bounds the per-document resolver cache.
const maxTrackedDocuments = 64

// Server wraps the engine and exposes it as MCP tools.
type Server struct {
	server  *gomcp.Server
	deps    Deps
	planner *core.MergePlanner

	resolversMu sync.Mutex
	resolvers   map[string]*core.ContextResolver
}

// NewServer creates a new MCP server over deps.
func NewServer(deps Deps, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		deps:      deps,
		planner:   core.NewMergePlanner(deps.Fetcher, deps.Events),
		resolvers: make(map[string]*core.ContextResolver),
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "cnl", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type tokenizeInput struct {
	Text string `json:"text" jsonschema:"the CNL document to tokenize"`
}

type tokenizeOutput struct {
	Tokens []models.Token `json:"tokens"`
	Count  int            `json:"count"`
}

type resolveContextInput struct {
	Document string `json:"document,omitempty" jsonschema:"a stable name for the document being edited; repeated calls reuse its header index"`
	Text     string `json:"text" jsonschema:"the document text, at least through the cursor line"`
	Line     int    `json:"line" jsonschema:"zero-based cursor line"`
	Column   int    `json:"column" jsonschema:"zero-based cursor column in characters"`
}

type cursorInput struct {
	GraphID string `json:"graph_id" jsonschema:"the graph whose schema supplies suggestions"`
	Text    string `json:"text" jsonschema:"the document text, at least through the cursor line"`
	Line    int    `json:"line" jsonschema:"zero-based cursor line"`
	Column  int    `json:"column" jsonschema:"zero-based cursor column in characters"`
}

type suggestOutput struct {
	Context     models.ContextView  `json:"context"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

type extractBlockInput struct {
	GraphID  string `json:"graph_id" jsonschema:"the graph to read"`
	NodeID   string `json:"node_id" jsonschema:"the node id written in the header's (id: ...) marker"`
	NodeName string `json:"node_name,omitempty" jsonschema:"fallback display name for headers without an id marker"`
}

type extractBlockOutput struct {
	Found     bool   `json:"found"`
	Block     string `json:"block"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

type findCandidatesInput struct {
	GraphID  string `json:"graph_id" jsonschema:"the graph being edited, excluded from the results"`
	NodeID   string `json:"node_id" jsonschema:"the node to look for"`
	NodeName string `json:"node_name,omitempty" jsonschema:"fallback display name"`
}

type findCandidatesOutput struct {
	Candidates     []string `json:"candidates"`
	NeedsSelection bool     `json:"needs_selection"`
}

type mergeNodeInput struct {
	GraphID       string `json:"graph_id" jsonschema:"the graph receiving the merged lines"`
	RemoteGraphID string `json:"remote_graph_id" jsonschema:"the graph to import from"`
	NodeID        string `json:"node_id" jsonschema:"the node whose blocks are merged"`
	NodeName      string `json:"node_name,omitempty" jsonschema:"fallback display name"`
	TargetLines   []int  `json:"target_lines,omitempty" jsonschema:"zero-based indices of local block lines to keep"`
	SourceLines   []int  `json:"source_lines,omitempty" jsonschema:"zero-based indices of remote block lines to import"`
	Apply         bool   `json:"apply,omitempty" jsonschema:"append the fragment to the graph; otherwise only preview it"`
}

type mergeNodeOutput struct {
	TargetBlock []string             `json:"target_block"`
	SourceBlock []string             `json:"source_block"`
	Plan        []models.PlannedLine `json:"plan"`
	Fragment    string               `json:"fragment"`
	Applied     bool                 `json:"applied"`
}

type listGraphsInput struct{}

type graphOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Updated     string `json:"updated"`
}

type listGraphsOutput struct {
	Graphs []graphOutput `json:"graphs"`
	Count  int           `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	MergesStarted   int            `json:"merges_started"`
	MergesConfirmed int            `json:"merges_confirmed"`
	MergesCancelled int            `json:"merges_cancelled"`
	LinesMerged     int            `json:"lines_merged"`
	FetchFailures   int            `json:"fetch_failures"`
	SchemaReloads   int            `json:"schema_reloads"`
	ConfirmRate     float64        `json:"confirm_rate"`
	MergesByGraph   map[string]int `json:"merges_by_graph"`
	FailuresByGraph map[string]int `json:"failures_by_graph"`
	EventCount      int            `json:"event_count"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "tokenize",
		Description: "Classify CNL text into highlight tokens: headers, relation tags, attribute keywords, description blocks and plain text.",
	}, s.handleTokenize)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_context",
		Description: "Report which slot the cursor is in and the declared type of the nearest header above it.",
	}, s.handleResolveContext)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "suggest",
		Description: "Resolve the cursor context (node type, relation or attribute slot) and return schema-driven completions for it.",
	}, s.handleSuggest)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "extract_block",
		Description: "Return a node's block: its header line and every line up to the next top-level header.",
	}, s.handleExtractBlock)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "find_candidates",
		Description: "List the other graphs that contain a block for a node, for importing context.",
	}, s.handleFindCandidates)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "merge_node",
		Description: "Merge selected lines of a node's local and remote blocks. Previews the fragment unless apply is set, in which case it is appended to the graph.",
	}, s.handleMergeNode)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_graphs",
		Description: "List the graphs in this workspace.",
	}, s.handleListGraphs)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated merge metrics from the event log, including confirmations, cancellations and fetch failures.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleTokenize(_ context.Context, _ *gomcp.CallToolRequest, input tokenizeInput) (*gomcp.CallToolResult, tokenizeOutput, error) {
	tokens := core.Tokenize(input.Text)
	if tokens == nil {
		tokens = []models.Token{}
	}
	return nil, tokenizeOutput{Tokens: tokens, Count: len(tokens)}, nil
}

func (s *Server) handleResolveContext(_ context.Context, _ *gomcp.CallToolRequest, input resolveContextInput) (*gomcp.CallToolResult, models.ContextView, error) {
	if input.Line < 0 || input.Column < 0 {
		return errorResult("line and column must not be negative"), models.ContextView{Slot: models.SlotNone}, nil
	}
	pos := models.Position{Line: input.Line, Column: input.Column}
	return nil, s.resolve("doc:"+input.Document, input.Text, pos).View(), nil
}

func (s *Server) handleSuggest(_ context.Context, _ *gomcp.CallToolRequest, input cursorInput) (*gomcp.CallToolResult, suggestOutput, error) {
	empty := suggestOutput{Suggestions: []models.Suggestion{}}
	if input.GraphID == "" {
		return errorResult("graph_id is required"), empty, nil
	}
	if input.Line < 0 || input.Column < 0 {
		return errorResult("line and column must not be negative"), empty, nil
	}

	schema, err := s.deps.Schemas.Schema(input.GraphID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading schema of %s: %s", input.GraphID, err)), empty, nil
	}

	pos := models.Position{Line: input.Line, Column: input.Column}
	sc := s.resolve("graph:"+input.GraphID, input.Text, pos)
	suggestions := core.Suggest(sc, *schema)
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	return nil, suggestOutput{Context: sc.View(), Suggestions: suggestions}, nil
}

func (s *Server) handleExtractBlock(_ context.Context, _ *gomcp.CallToolRequest, input extractBlockInput) (*gomcp.CallToolResult, extractBlockOutput, error) {
	if input.GraphID == "" {
		return errorResult("graph_id is required"), extractBlockOutput{}, nil
	}
	if input.NodeID == "" && input.NodeName == "" {
		return errorResult("node_id or node_name is required"), extractBlockOutput{}, nil
	}

	text, err := s.deps.Graphs.LoadText(input.GraphID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading graph %s: %s", input.GraphID, err)), extractBlockOutput{}, nil
	}

	b := core.FindBlock(text, input.NodeID, input.NodeName)
	return nil, extractBlockOutput{
		Found:     b.Found,
		Block:     b.Text,
		StartLine: b.StartLine,
		EndLine:   b.EndLine,
	}, nil
}

func (s *Server) handleFindCandidates(ctx context.Context, _ *gomcp.CallToolRequest, input findCandidatesInput) (*gomcp.CallToolResult, findCandidatesOutput, error) {
	empty := findCandidatesOutput{Candidates: []string{}}
	if input.NodeID == "" && input.NodeName == "" {
		return errorResult("node_id or node_name is required"), empty, nil
	}

	name, err := core.LookupNodeName(s.deps.Nodes, input.GraphID, input.NodeID, input.NodeName)
	if err != nil {
		return errorResult(err.Error()), empty, nil
	}
	candidates, err := core.FindCandidateGraphs(ctx, s.deps.Sources, input.GraphID, input.NodeID, name)
	if err != nil {
		return errorResult(err.Error()), empty, nil
	}
	if candidates == nil {
		candidates = []string{}
	}
	return nil, findCandidatesOutput{
		Candidates:     candidates,
		NeedsSelection: len(candidates) > 1,
	}, nil
}

func (s *Server) handleMergeNode(ctx context.Context, _ *gomcp.CallToolRequest, input mergeNodeInput) (*gomcp.CallToolResult, mergeNodeOutput, error) {
	empty := mergeNodeOutput{TargetBlock: []string{}, SourceBlock: []string{}, Plan: []models.PlannedLine{}}
	if input.GraphID == "" || input.RemoteGraphID == "" {
		return errorResult("graph_id and remote_graph_id are required"), empty, nil
	}

	local, err := s.deps.Graphs.LoadText(input.GraphID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading graph %s: %s", input.GraphID, err)), empty, nil
	}

	name, err := core.LookupNodeName(s.deps.Nodes, input.GraphID, input.NodeID, input.NodeName)
	if err != nil {
		return errorResult(err.Error()), empty, nil
	}

	// Previews are never confirmed, so they stay out of the merge metrics.
	open := s.planner.Preview
	if input.Apply {
		open = s.planner.Start
	}
	session, err := open(ctx, core.MergeRequest{
		NodeID:        input.NodeID,
		NodeName:      name,
		LocalText:     local,
		RemoteGraphID: input.RemoteGraphID,
	})
	if err != nil {
		return errorResult(err.Error()), empty, nil
	}

	for _, i := range input.TargetLines {
		if err := session.SetSelected(models.SideTarget, i, true); err != nil {
			session.Cancel()
			return errorResult(err.Error()), empty, nil
		}
	}
	for _, i := range input.SourceLines {
		if err := session.SetSelected(models.SideSource, i, true); err != nil {
			session.Cancel()
			return errorResult(err.Error()), empty, nil
		}
	}

	out := mergeNodeOutput{
		TargetBlock: nonNil(session.Lines(models.SideTarget)),
		SourceBlock: nonNil(session.Lines(models.SideSource)),
		Plan:        session.Plan(),
		Fragment:    session.Fragment(),
	}
	if out.Plan == nil {
		out.Plan = []models.PlannedLine{}
	}

	if !input.Apply {
		session.Cancel()
		return nil, out, nil
	}
	if s.deps.Sinks == nil {
		session.Cancel()
		return errorResult("merging is not available: no writable graph store"), empty, nil
	}
	if _, err := session.Confirm(ctx, s.deps.Sinks.Sink(input.GraphID)); err != nil {
		session.Cancel()
		if errors.Is(err, core.ErrNothingSelected) {
			return errorResult("select at least one target or source line to apply a merge"), empty, nil
		}
		return errorResult(err.Error()), empty, nil
	}
	out.Applied = true
	return nil, out, nil
}

func (s *Server) handleListGraphs(_ context.Context, _ *gomcp.CallToolRequest, _ listGraphsInput) (*gomcp.CallToolResult, listGraphsOutput, error) {
	refs, err := s.deps.Graphs.ListGraphs()
	if err != nil {
		return errorResult(fmt.Sprintf("listing graphs: %s", err)), listGraphsOutput{Graphs: []graphOutput{}}, nil
	}

	out := listGraphsOutput{
		Graphs: make([]graphOutput, len(refs)),
		Count:  len(refs),
	}
	for i, r := range refs {
		out.Graphs[i] = graphOutput{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Updated:     r.UpdatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.deps.Metrics == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.deps.Metrics.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		MergesStarted:   metrics.MergesStarted,
		MergesConfirmed: metrics.MergesConfirmed,
		MergesCancelled: metrics.MergesCancelled,
		LinesMerged:     metrics.LinesMerged,
		FetchFailures:   metrics.FetchFailures,
		SchemaReloads:   metrics.SchemaReloads,
		ConfirmRate:     metrics.ConfirmRate,
		MergesByGraph:   metrics.MergesByGraph,
		FailuresByGraph: metrics.FailuresByGraph,
		EventCount:      metrics.EventCount,
	}
	if out.MergesByGraph == nil {
		out.MergesByGraph = make(map[string]int)
	}
	if out.FailuresByGraph == nil {
		out.FailuresByGraph = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

// --- Helpers ---

// resolve runs the cursor resolver kept for key, tracking text so only the
// edited suffix of the document is rescanned.
func (s *Server) resolve(key, text string, pos models.Position) models.SuggestionContext {
	s.resolversMu.Lock()
	defer s.resolversMu.Unlock()

	r, ok := s.resolvers[key]
	if !ok {
		if len(s.resolvers) >= maxTrackedDocuments {
			s.resolvers = make(map[string]*core.ContextResolver)
		}
		r = core.NewContextResolver(s.deps.MaxScanLines)
		s.resolvers[key] = r
	}
	r.Track(text)
	return r.Resolve(text, pos)
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		MergesByGraph:   make(map[string]int),
		FailuresByGraph: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
