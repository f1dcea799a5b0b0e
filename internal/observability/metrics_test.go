package observability

import (
	"reflect"
	"testing"
	"time"
)

func TestMetricsCalculator_Calculate(t *testing.T) {
	log, _ := openLog(t)
	rec := NewRecorder(log, nil)

	steps := []struct {
		typ  string
		data map[string]any
	}{
		{"merge.started", map[string]any{"graph_id": "work"}},
		{"merge.confirmed", map[string]any{"graph_id": "work", "lines": 3}},
		{"merge.started", map[string]any{"graph_id": "home"}},
		{"merge.cancelled", map[string]any{"graph_id": "home"}},
		{"fetch.failed", map[string]any{"graph_id": "home", "reason": "network"}},
		{"merge.started", map[string]any{"graph_id": "work"}},
		{"merge.confirmed", map[string]any{"graph_id": "work", "lines": 2}},
		{"schema.reloaded", map[string]any{"graph_id": "work"}},
	}
	for _, s := range steps {
		if err := rec.LogEvent(s.typ, s.data); err != nil {
			t.Fatalf("LogEvent(%s): %v", s.typ, err)
		}
	}

	m, err := NewMetricsCalculator(log).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if m.MergesStarted != 3 || m.MergesConfirmed != 2 || m.MergesCancelled != 1 {
		t.Errorf("merges = %d/%d/%d, want 3/2/1", m.MergesStarted, m.MergesConfirmed, m.MergesCancelled)
	}
	if m.LinesMerged != 5 {
		t.Errorf("LinesMerged = %d, want 5", m.LinesMerged)
	}
	if m.FetchFailures != 1 || m.FailuresByGraph["home"] != 1 {
		t.Errorf("fetch failures = %d %v, want 1 on home", m.FetchFailures, m.FailuresByGraph)
	}
	if m.SchemaReloads != 1 {
		t.Errorf("SchemaReloads = %d, want 1", m.SchemaReloads)
	}
	if want := 2.0 / 3.0; m.ConfirmRate != want {
		t.Errorf("ConfirmRate = %v, want %v", m.ConfirmRate, want)
	}
	if m.EventCount != len(steps) {
		t.Errorf("EventCount = %d, want %d", m.EventCount, len(steps))
	}
	if m.OldestEvent == nil || m.NewestEvent == nil || m.NewestEvent.Before(*m.OldestEvent) {
		t.Errorf("event window = %v..%v", m.OldestEvent, m.NewestEvent)
	}
	if got := m.TopGraphs(5); !reflect.DeepEqual(got, []string{"work"}) {
		t.Errorf("TopGraphs = %v, want [work]", got)
	}
}

func TestMetricsCalculator_Empty(t *testing.T) {
	log, _ := openLog(t)
	m, err := NewMetricsCalculator(log).Calculate(time.Now())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if m.EventCount != 0 || m.ConfirmRate != 0 || m.OldestEvent != nil {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestMetrics_TopGraphsOrdering(t *testing.T) {
	m := &Metrics{MergesByGraph: map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}}
	if got, want := m.TopGraphs(3), []string{"c", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TopGraphs(3) = %v, want %v", got, want)
	}
	if got := m.TopGraphs(0); len(got) != 4 {
		t.Errorf("TopGraphs(0) = %v, want all graphs", got)
	}
}
