// Package observability provides the merge event log, metrics derived from
// it, Prometheus instrumentation and the zap logger used outside the engine.
// Events are persisted as JSON Lines and metrics are computed on demand.
package observability
