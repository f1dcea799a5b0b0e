package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

type fakeFetcher struct {
	calls int
	fn    func(req FragmentRequest) (string, error)
}

func (f *fakeFetcher) FetchFragment(_ context.Context, req FragmentRequest) (string, error) {
	f.calls++
	return f.fn(req)
}

type recordedEvent struct {
	Type string
	Data map[string]any
}

type fakeEventLogger struct {
	events []recordedEvent
}

func (f *fakeEventLogger) LogEvent(eventType string, data map[string]any) error {
	f.events = append(f.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (f *fakeEventLogger) types() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeTextSource struct {
	ids   []string
	texts map[string]string
}

func (f *fakeTextSource) GraphIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.ids, nil
}

func (f *fakeTextSource) GraphText(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, ok := f.texts[id]
	if !ok {
		return "", errors.New("no such graph")
	}
	return text, nil
}

func TestMergeSession_TargetThenSource(t *testing.T) {
	s := NewMergeSession("1", "other", "has x: 1", "has x: 2\nhas z: 3")
	mustSet(t, s, models.SideSource, 0)
	mustSet(t, s, models.SideTarget, 0)
	mustSet(t, s, models.SideSource, 1)

	if got, want := s.Fragment(), "has x: 1\nhas x: 2\nhas z: 3"; got != want {
		t.Errorf("Fragment() = %q, want %q", got, want)
	}
}

func mustSet(t *testing.T, s *MergeSession, side models.MergeSide, i int) {
	t.Helper()
	if err := s.SetSelected(side, i, true); err != nil {
		t.Fatalf("SetSelected(%s, %d) error: %v", side, i, err)
	}
}

func TestMergeSession_ZeroSelectionDisablesConfirm(t *testing.T) {
	s := NewMergeSession("1", "other", "a\nb", "c")
	if s.CanConfirm() {
		t.Fatal("CanConfirm() = true with nothing selected")
	}

	sinkCalled := false
	sink := TextSinkFunc(func(context.Context, string) error {
		sinkCalled = true
		return nil
	})
	if _, err := s.Confirm(context.Background(), sink); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("Confirm() error = %v, want ErrNothingSelected", err)
	}
	if sinkCalled {
		t.Error("sink was called for an empty selection")
	}

	if err := s.Toggle(models.SideTarget, 1); err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}
	if !s.CanConfirm() {
		t.Error("CanConfirm() = false after selecting a line")
	}
	if err := s.Toggle(models.SideTarget, 1); err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}
	if s.CanConfirm() {
		t.Error("CanConfirm() = true after deselecting the only line")
	}
}

func TestMergeSession_ConfirmAppliesOnce(t *testing.T) {
	events := &fakeEventLogger{}
	s := NewMergeSession("1", "other", "t1\nt2", "s1")
	s.events = events
	if err := s.SelectAll(models.SideTarget); err != nil {
		t.Fatalf("SelectAll() error: %v", err)
	}

	var applied []string
	sink := TextSinkFunc(func(_ context.Context, fragment string) error {
		applied = append(applied, fragment)
		return nil
	})

	got, err := s.Confirm(context.Background(), sink)
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if got != "t1\nt2" {
		t.Errorf("Confirm() = %q, want %q", got, "t1\nt2")
	}
	if len(applied) != 1 || applied[0] != "t1\nt2" {
		t.Errorf("sink calls = %q, want one call with %q", applied, "t1\nt2")
	}
	if !s.Closed() {
		t.Error("session not closed after Confirm")
	}
	if len(s.Selected(models.SideTarget)) != 0 {
		t.Error("selection not discarded after Confirm")
	}
	if _, err := s.Confirm(context.Background(), sink); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Confirm() error = %v, want ErrSessionClosed", err)
	}
	if len(applied) != 1 {
		t.Errorf("sink called %d times, want 1", len(applied))
	}
	if !reflect.DeepEqual(events.types(), []string{EventMergeConfirmed}) {
		t.Errorf("events = %v, want [%s]", events.types(), EventMergeConfirmed)
	}
}

func TestMergeSession_SinkFailureKeepsSessionOpen(t *testing.T) {
	s := NewMergeSession("1", "other", "t1", "")
	mustSet(t, s, models.SideTarget, 0)

	boom := errors.New("disk full")
	_, err := s.Confirm(context.Background(), TextSinkFunc(func(context.Context, string) error { return boom }))
	if !errors.Is(err, boom) {
		t.Fatalf("Confirm() error = %v, want wrapped %v", err, boom)
	}
	if s.Closed() {
		t.Error("session closed after a failed apply")
	}
	if !s.IsSelected(models.SideTarget, 0) {
		t.Error("selection lost after a failed apply")
	}
}

func TestMergeSession_CancelHasNoSideEffects(t *testing.T) {
	events := &fakeEventLogger{}
	s := NewMergeSession("1", "other", "t1", "s1")
	s.events = events
	mustSet(t, s, models.SideSource, 0)

	s.Cancel()
	s.Cancel()

	if !s.Closed() {
		t.Fatal("session not closed after Cancel")
	}
	if err := s.Toggle(models.SideSource, 0); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Toggle() after Cancel error = %v, want ErrSessionClosed", err)
	}
	if !reflect.DeepEqual(events.types(), []string{EventMergeCancelled}) {
		t.Errorf("events = %v, want one cancel event", events.types())
	}
}

func TestMergeSession_OutOfRange(t *testing.T) {
	s := NewMergeSession("1", "other", "t1", "")
	if err := s.Toggle(models.SideSource, 0); err == nil {
		t.Error("Toggle() on an empty side should fail")
	}
	if err := s.Toggle(models.SideTarget, -1); err == nil {
		t.Error("Toggle(-1) should fail")
	}
	if err := s.Toggle("sideways", 0); err == nil {
		t.Error("Toggle() with an unknown side should fail")
	}
}

func TestMergeSession_PlanCarriesOrigin(t *testing.T) {
	s := NewMergeSession("1", "other", "t0\nt1", "s0\ns1")
	mustSet(t, s, models.SideSource, 1)
	mustSet(t, s, models.SideTarget, 1)

	want := []models.PlannedLine{
		{Side: models.SideTarget, Index: 1, Text: "t1"},
		{Side: models.SideSource, Index: 1, Text: "s1"},
	}
	if got := s.Plan(); !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %+v, want %+v", got, want)
	}
}

func TestMergePlanner_Start(t *testing.T) {
	events := &fakeEventLogger{}
	fetcher := &fakeFetcher{fn: func(req FragmentRequest) (string, error) {
		if req.GraphID != "remote" || req.NodeID != "1" {
			t.Errorf("unexpected request %+v", req)
		}
		return "# A (id: 1)\nhas x: 2\nhas z: 3", nil
	}}
	p := NewMergePlanner(fetcher, events)

	s, err := p.Start(context.Background(), MergeRequest{
		NodeID:        "1",
		LocalText:     twoNodes,
		RemoteGraphID: "remote",
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
	if got, want := s.Lines(models.SideTarget), []string{"# A (id: 1)", "has x: 1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("target lines = %v, want %v", got, want)
	}
	if got := s.Lines(models.SideSource); len(got) != 3 {
		t.Errorf("source lines = %v, want 3 lines", got)
	}
	if s.ID == "" {
		t.Error("session has no id")
	}
	if !reflect.DeepEqual(events.types(), []string{EventMergeStarted}) {
		t.Errorf("events = %v, want [%s]", events.types(), EventMergeStarted)
	}
}

func TestMergePlanner_PreviewRecordsNothing(t *testing.T) {
	events := &fakeEventLogger{}
	fetcher := &fakeFetcher{fn: func(FragmentRequest) (string, error) {
		return "# A (id: 1)\nhas x: 2", nil
	}}
	p := NewMergePlanner(fetcher, events)

	s, err := p.Preview(context.Background(), MergeRequest{
		NodeID: "1", LocalText: twoNodes, RemoteGraphID: "remote",
	})
	if err != nil {
		t.Fatalf("Preview() error: %v", err)
	}
	if err := s.SetSelected(models.SideSource, 1, true); err != nil {
		t.Fatalf("SetSelected() error: %v", err)
	}
	if got := s.Fragment(); got != "has x: 2" {
		t.Errorf("Fragment() = %q, want %q", got, "has x: 2")
	}
	s.Cancel()
	if len(events.events) != 0 {
		t.Errorf("events = %v, want none", events.types())
	}

	failing := NewMergePlanner(&fakeFetcher{fn: func(FragmentRequest) (string, error) {
		return "", ErrNetwork
	}}, events)
	if _, err := failing.Preview(context.Background(), MergeRequest{NodeID: "1", RemoteGraphID: "remote"}); !errors.Is(err, ErrNetwork) {
		t.Fatalf("Preview() error = %v, want ErrNetwork", err)
	}
	if !reflect.DeepEqual(events.types(), []string{EventFetchFailed}) {
		t.Errorf("events = %v, want [%s]", events.types(), EventFetchFailed)
	}
}

func TestMergePlanner_FetchFailureAborts(t *testing.T) {
	for _, cause := range []error{ErrFragmentNotFound, ErrNetwork} {
		t.Run(cause.Error(), func(t *testing.T) {
			events := &fakeEventLogger{}
			fetcher := &fakeFetcher{fn: func(FragmentRequest) (string, error) {
				return "", cause
			}}
			s, err := NewMergePlanner(fetcher, events).Start(context.Background(), MergeRequest{
				NodeID: "1", LocalText: twoNodes, RemoteGraphID: "remote",
			})
			if s != nil {
				t.Error("Start() returned a session on fetch failure")
			}
			var rfe *RemoteFetchError
			if !errors.As(err, &rfe) {
				t.Fatalf("Start() error = %v, want *RemoteFetchError", err)
			}
			if !errors.Is(err, cause) {
				t.Errorf("error does not unwrap to %v", cause)
			}
			if fetcher.calls != 1 {
				t.Errorf("fetch calls = %d, want exactly 1", fetcher.calls)
			}
			if !reflect.DeepEqual(events.types(), []string{EventFetchFailed}) {
				t.Errorf("events = %v, want [%s]", events.types(), EventFetchFailed)
			}
		})
	}
}

func TestMergePlanner_RejectsMissingInput(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(FragmentRequest) (string, error) { return "", nil }}
	p := NewMergePlanner(fetcher, nil)
	if _, err := p.Start(context.Background(), MergeRequest{NodeID: "1"}); err == nil {
		t.Error("Start() without remote graph should fail")
	}
	if _, err := p.Start(context.Background(), MergeRequest{RemoteGraphID: "r"}); err == nil {
		t.Error("Start() without node identity should fail")
	}
	if fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.calls)
	}
}

func TestSelectRemoteGraph(t *testing.T) {
	if _, err := SelectRemoteGraph(nil); !errors.Is(err, ErrNoRemoteGraph) {
		t.Errorf("SelectRemoteGraph(nil) error = %v, want ErrNoRemoteGraph", err)
	}

	one, err := SelectRemoteGraph([]string{"g2"})
	if err != nil {
		t.Fatalf("SelectRemoteGraph(one) error: %v", err)
	}
	if one.NeedsSelection || one.GraphID != "g2" {
		t.Errorf("SelectRemoteGraph(one) = %+v, want direct start on g2", one)
	}

	many, err := SelectRemoteGraph([]string{"g2", "g3"})
	if err != nil {
		t.Fatalf("SelectRemoteGraph(many) error: %v", err)
	}
	if !many.NeedsSelection || many.GraphID != "" {
		t.Errorf("SelectRemoteGraph(many) = %+v, want a selection step", many)
	}
}

func TestFindCandidateGraphs(t *testing.T) {
	src := &fakeTextSource{
		ids: []string{"current", "g2", "g3", "g4"},
		texts: map[string]string{
			"current": twoNodes,
			"g2":      "# A (id: 1)\nhas x: 5",
			"g3":      "# C (id: 3)",
			"g4":      "# Other\n# A\nhas q: 1",
		},
	}

	got, err := FindCandidateGraphs(context.Background(), src, "current", "1", "A")
	if err != nil {
		t.Fatalf("FindCandidateGraphs() error: %v", err)
	}
	if want := []string{"g2", "g4"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FindCandidateGraphs() = %v, want %v", got, want)
	}
}

func TestFindCandidateGraphs_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeTextSource{ids: []string{"g2"}, texts: map[string]string{"g2": ""}}
	if _, err := FindCandidateGraphs(ctx, src, "current", "1", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("FindCandidateGraphs() error = %v, want context.Canceled", err)
	}
}

func TestAppendFragment(t *testing.T) {
	tests := []struct {
		buffer, fragment, want string
	}{
		{"", "a", "a"},
		{"x", "", "x"},
		{"x", "a\nb", "x\na\nb"},
		{"x\n", "a", "x\na\n"},
	}
	for _, tt := range tests {
		if got := AppendFragment(tt.buffer, tt.fragment); got != tt.want {
			t.Errorf("AppendFragment(%q, %q) = %q, want %q", tt.buffer, tt.fragment, got, tt.want)
		}
	}
}

func TestSplitBlockLines(t *testing.T) {
	if got := SplitBlockLines(""); got != nil {
		t.Errorf("SplitBlockLines(\"\") = %v, want nil", got)
	}
	if got, want := SplitBlockLines("a\nb\n"), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SplitBlockLines() = %v, want %v", got, want)
	}
}
