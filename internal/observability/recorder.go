package observability

import (
	"time"
)

var eventMessages = map[string]string{
	"merge.started":        "merge session started",
	"merge.confirmed":      "merged fragment applied",
	"merge.cancelled":      "merge session cancelled",
	"fetch.failed":         "remote fragment fetch failed",
	"schema.reloaded":      "schema reloaded",
	"schema.reload_failed": "schema reload failed",
}

var eventLevels = map[string]string{
	"fetch.failed":         LevelWarn,
	"schema.reload_failed": LevelError,
}

// Recorder turns engine events into event log lines and metric updates.
// Either sink may be nil.
type Recorder struct {
	log     EventLog
	metrics *Collector
	now     func() time.Time
}

// NewRecorder creates a Recorder writing to log and metrics.
func NewRecorder(log EventLog, metrics *Collector) *Recorder {
	return &Recorder{log: log, metrics: metrics, now: time.Now}
}

// LogEvent records one event. Metrics are updated even if the log write
// fails.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	if r.metrics != nil {
		r.metrics.RecordEvent(eventType, data)
	}
	if r.log == nil {
		return nil
	}

	level := eventLevels[eventType]
	if level == "" {
		level = LevelInfo
	}
	msg := eventMessages[eventType]
	if msg == "" {
		msg = eventType
	}
	return r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: msg,
		Data:    data,
	})
}
