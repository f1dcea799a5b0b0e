package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

var (
	// ErrNoRemoteGraph means no other graph holds a block for the node.
	ErrNoRemoteGraph = errors.New("no other graph contains this node")
	// ErrNothingSelected means a merge was confirmed with no lines selected.
	ErrNothingSelected = errors.New("no lines selected")
	// ErrSessionClosed means the session was already confirmed or cancelled.
	ErrSessionClosed = errors.New("merge session is closed")
)

// RemoteChoice is the outcome of choosing which other graph to merge from.
// When NeedsSelection is set the caller must ask the user to pick one of
// Candidates before a session can start.
type RemoteChoice struct {
	GraphID        string
	NeedsSelection bool
	Candidates     []string
}

// SelectRemoteGraph applies the branching policy: one candidate starts the
// session directly, several require a selection step.
func SelectRemoteGraph(candidates []string) (RemoteChoice, error) {
	switch len(candidates) {
	case 0:
		return RemoteChoice{}, ErrNoRemoteGraph
	case 1:
		return RemoteChoice{GraphID: candidates[0], Candidates: candidates}, nil
	default:
		return RemoteChoice{NeedsSelection: true, Candidates: candidates}, nil
	}
}

// FindCandidateGraphs lists the graphs other than currentGraphID whose text
// contains a block for the node.
func FindCandidateGraphs(ctx context.Context, src GraphTextSource, currentGraphID, nodeID, nodeName string) ([]string, error) {
	ids, err := src.GraphIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding candidate graphs: listing graphs: %w", err)
	}
	var candidates []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if id == currentGraphID {
			continue
		}
		text, err := src.GraphText(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("finding candidate graphs: loading %s: %w", id, err)
		}
		if FindBlock(text, nodeID, nodeName).Found {
			candidates = append(candidates, id)
		}
	}
	return candidates, nil
}

// MergeRequest describes an "import context" action for one node.
type MergeRequest struct {
	NodeID        string
	NodeName      string
	LocalText     string
	RemoteGraphID string
}

// MergePlanner starts merge sessions. It performs exactly one remote fetch
// per session and never touches the local text.
type MergePlanner struct {
	fetcher RemoteFragmentFetcher
	events  EventLogger
}

// NewMergePlanner creates a planner. events may be nil.
func NewMergePlanner(fetcher RemoteFragmentFetcher, events EventLogger) *MergePlanner {
	return &MergePlanner{fetcher: fetcher, events: events}
}

// Start extracts the local block, fetches the remote one and opens a session.
// A failed fetch returns a *RemoteFetchError and no session.
func (p *MergePlanner) Start(ctx context.Context, req MergeRequest) (*MergeSession, error) {
	s, err := p.open(ctx, req)
	if err != nil {
		return nil, err
	}
	s.events = p.events
	logEvent(p.events, EventMergeStarted, s.eventData())
	return s, nil
}

// Preview opens a session like Start but records nothing about it: neither
// its start nor its cancellation reaches the event log. Fetch failures are
// still recorded. Use it to show a merge that will not be confirmed.
func (p *MergePlanner) Preview(ctx context.Context, req MergeRequest) (*MergeSession, error) {
	return p.open(ctx, req)
}

func (p *MergePlanner) open(ctx context.Context, req MergeRequest) (*MergeSession, error) {
	if req.RemoteGraphID == "" {
		return nil, fmt.Errorf("starting merge: remote graph id is required")
	}
	if req.NodeID == "" && req.NodeName == "" {
		return nil, fmt.Errorf("starting merge: node id or name is required")
	}

	local := ExtractBlock(req.LocalText, req.NodeID, req.NodeName)
	remote, err := p.fetcher.FetchFragment(ctx, FragmentRequest{
		GraphID:  req.RemoteGraphID,
		NodeID:   req.NodeID,
		NodeName: req.NodeName,
	})
	if err != nil {
		logEvent(p.events, EventFetchFailed, map[string]any{
			"graph_id": req.RemoteGraphID,
			"node_id":  req.NodeID,
			"reason":   FetchFailureReason(err),
			"error":    err.Error(),
		})
		var rfe *RemoteFetchError
		if errors.As(err, &rfe) {
			return nil, err
		}
		return nil, &RemoteFetchError{GraphID: req.RemoteGraphID, NodeID: req.NodeID, Err: err}
	}

	return NewMergeSession(req.NodeID, req.RemoteGraphID, local, remote), nil
}

// MergeSession holds the line selections of one merge. Selections are
// discarded when the session is confirmed or cancelled.
type MergeSession struct {
	ID            string
	NodeID        string
	RemoteGraphID string

	target   []string
	source   []string
	selected map[models.MergeSide]map[int]bool
	closed   bool
	events   EventLogger
}

// NewMergeSession opens a session over a local (target) and a remote
// (source) block. Nothing is selected initially.
func NewMergeSession(nodeID, remoteGraphID, targetBlock, sourceBlock string) *MergeSession {
	return &MergeSession{
		ID:            uuid.NewString(),
		NodeID:        nodeID,
		RemoteGraphID: remoteGraphID,
		target:        SplitBlockLines(targetBlock),
		source:        SplitBlockLines(sourceBlock),
		selected: map[models.MergeSide]map[int]bool{
			models.SideTarget: {},
			models.SideSource: {},
		},
	}
}

// Lines returns a copy of one side's lines.
func (s *MergeSession) Lines(side models.MergeSide) []string {
	return append([]string(nil), s.lines(side)...)
}

func (s *MergeSession) lines(side models.MergeSide) []string {
	if side == models.SideSource {
		return s.source
	}
	return s.target
}

// Toggle flips the selection of one line.
func (s *MergeSession) Toggle(side models.MergeSide, index int) error {
	if err := s.check(side, index); err != nil {
		return err
	}
	s.selected[side][index] = !s.selected[side][index]
	return nil
}

// SetSelected sets the selection of one line.
func (s *MergeSession) SetSelected(side models.MergeSide, index int, selected bool) error {
	if err := s.check(side, index); err != nil {
		return err
	}
	s.selected[side][index] = selected
	return nil
}

// SelectAll selects every line on one side.
func (s *MergeSession) SelectAll(side models.MergeSide) error {
	if s.closed {
		return ErrSessionClosed
	}
	for i := range s.lines(side) {
		s.selected[side][i] = true
	}
	return nil
}

// IsSelected reports whether one line is selected.
func (s *MergeSession) IsSelected(side models.MergeSide, index int) bool {
	return s.selected[side][index]
}

// Selected returns the selected indices of one side in block order.
func (s *MergeSession) Selected(side models.MergeSide) []int {
	var idx []int
	for i, on := range s.selected[side] {
		if on {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	return idx
}

// CanConfirm is false while nothing is selected on either side.
func (s *MergeSession) CanConfirm() bool {
	return !s.closed && (len(s.Selected(models.SideTarget)) > 0 || len(s.Selected(models.SideSource)) > 0)
}

// Plan lists the merged lines with their origin: selected target lines
// first, then selected source lines, each in block order.
func (s *MergeSession) Plan() []models.PlannedLine {
	var plan []models.PlannedLine
	for _, side := range []models.MergeSide{models.SideTarget, models.SideSource} {
		lines := s.lines(side)
		for _, i := range s.Selected(side) {
			plan = append(plan, models.PlannedLine{Side: side, Index: i, Text: lines[i]})
		}
	}
	return plan
}

// Fragment renders the merged text.
func (s *MergeSession) Fragment() string {
	return ComposeFragment(s.selectedLines(models.SideTarget), s.selectedLines(models.SideSource))
}

func (s *MergeSession) selectedLines(side models.MergeSide) []string {
	lines := s.lines(side)
	var out []string
	for _, i := range s.Selected(side) {
		out = append(out, lines[i])
	}
	return out
}

// Confirm hands the fragment to sink in a single call and closes the
// session. If the sink fails the session stays open so the user may retry.
func (s *MergeSession) Confirm(ctx context.Context, sink TextSink) (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	if !s.CanConfirm() {
		return "", ErrNothingSelected
	}
	fragment := s.Fragment()
	if err := sink.AppendText(ctx, fragment); err != nil {
		return "", fmt.Errorf("applying merged fragment: %w", err)
	}
	data := s.eventData()
	data["lines"] = len(s.Plan())
	s.close()
	logEvent(s.events, EventMergeConfirmed, data)
	return fragment, nil
}

// Cancel discards the session. It never touches either graph.
func (s *MergeSession) Cancel() {
	if s.closed {
		return
	}
	data := s.eventData()
	s.close()
	logEvent(s.events, EventMergeCancelled, data)
}

// Closed reports whether the session was confirmed or cancelled.
func (s *MergeSession) Closed() bool {
	return s.closed
}

func (s *MergeSession) close() {
	s.closed = true
	s.selected = map[models.MergeSide]map[int]bool{
		models.SideTarget: {},
		models.SideSource: {},
	}
}

func (s *MergeSession) check(side models.MergeSide, index int) error {
	if s.closed {
		return ErrSessionClosed
	}
	if side != models.SideTarget && side != models.SideSource {
		return fmt.Errorf("unknown merge side %q", side)
	}
	if index < 0 || index >= len(s.lines(side)) {
		return fmt.Errorf("%s line %d out of range [0, %d)", side, index, len(s.lines(side)))
	}
	return nil
}

func (s *MergeSession) eventData() map[string]any {
	return map[string]any{
		"session_id": s.ID,
		"node_id":    s.NodeID,
		"graph_id":   s.RemoteGraphID,
	}
}

// ComposeFragment joins selected target lines and then selected source lines.
func ComposeFragment(targetLines, sourceLines []string) string {
	all := make([]string, 0, len(targetLines)+len(sourceLines))
	all = append(all, targetLines...)
	all = append(all, sourceLines...)
	return strings.Join(all, "\n")
}

// SplitBlockLines splits a block into selectable lines. An empty block has
// no lines and a trailing newline does not produce an empty last line.
func SplitBlockLines(block string) []string {
	if block == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(block, "\n"), "\n")
}

// AppendFragment appends fragment to buffer on its own line(s), keeping a
// trailing newline if buffer had one.
func AppendFragment(buffer, fragment string) string {
	if fragment == "" {
		return buffer
	}
	if buffer == "" {
		return fragment
	}
	if strings.HasSuffix(buffer, "\n") {
		return buffer + fragment + "\n"
	}
	return buffer + "\n" + fragment
}

func logEvent(events EventLogger, eventType string, data map[string]any) {
	if events == nil {
		return
	}
	_ = events.LogEvent(eventType, data) // Event logging is best-effort.
}
