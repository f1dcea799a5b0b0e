package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of one process. Each Collector owns
// its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	Suggestions    *prometheus.CounterVec
	SuggestLatency prometheus.Histogram
	Merges         *prometheus.CounterVec
	MergedLines    prometheus.Counter
	FetchFailures  *prometheus.CounterVec
	SchemaReloads  *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Suggestion requests by resolved slot.",
		}, []string{"slot"}),
		SuggestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suggest_duration_seconds",
			Help:      "Time to resolve context and build suggestions.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merge sessions by outcome.",
		}, []string{"outcome"}),
		MergedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_lines_total",
			Help:      "Lines appended by confirmed merges.",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Remote fragment fetch failures by reason.",
		}, []string{"reason"}),
		SchemaReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_reloads_total",
			Help:      "Schema hot reloads by status.",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.Suggestions, c.SuggestLatency, c.Merges, c.MergedLines,
		c.FetchFailures, c.SchemaReloads, c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveSuggest records one suggestion request.
func (c *Collector) ObserveSuggest(slot string, d time.Duration) {
	c.Suggestions.WithLabelValues(slot).Inc()
	c.SuggestLatency.Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route, status string, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordEvent updates counters for a logged engine event. Unknown event
// types are ignored.
func (c *Collector) RecordEvent(eventType string, data map[string]any) {
	switch eventType {
	case "merge.started":
		c.Merges.WithLabelValues("started").Inc()
	case "merge.confirmed":
		c.Merges.WithLabelValues("confirmed").Inc()
		if n, ok := intValue(data["lines"]); ok {
			c.MergedLines.Add(float64(n))
		}
	case "merge.cancelled":
		c.Merges.WithLabelValues("cancelled").Inc()
	case "fetch.failed":
		reason, _ := data["reason"].(string)
		if reason == "" {
			reason = "other"
		}
		c.FetchFailures.WithLabelValues(reason).Inc()
	case "schema.reloaded":
		c.SchemaReloads.WithLabelValues("ok").Inc()
	case "schema.reload_failed":
		c.SchemaReloads.WithLabelValues("error").Inc()
	}
}

// intValue accepts the numeric shapes a data value takes before and after a
// JSON round trip.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
