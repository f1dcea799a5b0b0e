package observability

import (
	"fmt"
	"sort"
	"time"
)

// Metrics summarizes merge activity derived from the event log.
type Metrics struct {
	MergesStarted   int            `json:"merges_started"`
	MergesConfirmed int            `json:"merges_confirmed"`
	MergesCancelled int            `json:"merges_cancelled"`
	LinesMerged     int            `json:"lines_merged"`
	FetchFailures   int            `json:"fetch_failures"`
	FailuresByGraph map[string]int `json:"failures_by_graph"`
	MergesByGraph   map[string]int `json:"merges_by_graph"`
	SchemaReloads   int            `json:"schema_reloads"`
	// ConfirmRate is confirmed / started, zero when nothing started.
	ConfirmRate float64    `json:"confirm_rate"`
	EventCount  int        `json:"event_count"`
	OldestEvent *time.Time `json:"oldest_event,omitempty"`
	NewestEvent *time.Time `json:"newest_event,omitempty"`
}

// TopGraphs returns the graphs merged from most often, highest first.
func (m *Metrics) TopGraphs(n int) []string {
	ids := make([]string, 0, len(m.MergesByGraph))
	for id := range m.MergesByGraph {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if m.MergesByGraph[ids[i]] != m.MergesByGraph[ids[j]] {
			return m.MergesByGraph[ids[i]] > m.MergesByGraph[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator reading from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event since the given time.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		FailuresByGraph: make(map[string]int),
		MergesByGraph:   make(map[string]int),
		EventCount:      len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		graph, _ := event.Data["graph_id"].(string)
		switch event.Type {
		case "merge.started":
			m.MergesStarted++
		case "merge.confirmed":
			m.MergesConfirmed++
			if n, ok := intValue(event.Data["lines"]); ok {
				m.LinesMerged += n
			}
			if graph != "" {
				m.MergesByGraph[graph]++
			}
		case "merge.cancelled":
			m.MergesCancelled++
		case "fetch.failed":
			m.FetchFailures++
			if graph != "" {
				m.FailuresByGraph[graph]++
			}
		case "schema.reloaded":
			m.SchemaReloads++
		}
	}

	if m.MergesStarted > 0 {
		m.ConfirmRate = float64(m.MergesConfirmed) / float64(m.MergesStarted)
	}
	return m, nil
}
