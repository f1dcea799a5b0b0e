package core

import "errors"

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Event types emitted by the merge planner and the schema watcher.
const (
	EventMergeStarted       = "merge.started"
	EventMergeConfirmed     = "merge.confirmed"
	EventMergeCancelled     = "merge.cancelled"
	EventFetchFailed        = "fetch.failed"
	EventSchemaReloaded     = "schema.reloaded"
	EventSchemaReloadFailed = "schema.reload_failed"
)

// FetchFailureReason classifies a fetch error for event data and metrics.
func FetchFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrFragmentNotFound):
		return "not_found"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
