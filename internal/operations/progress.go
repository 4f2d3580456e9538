package operations

import (
	"log/slog"
	"sync"
)

// ProgressEvent is the only externally visible progress signal: the
// phase that moved, overall percentage, and a status word.
type ProgressEvent struct {
	OperationID string `json:"operation_id"`
	Phase       string `json:"phase"`
	Percentage  int    `json:"percentage"`
	Status      string `json:"status"` // running|completed|failed
}

// ProgressSink receives events pushed by the broadcaster. The websocket
// hub implements it for the HTTP surface; the CLI passes a logger-backed
// sink.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

// ProgressBroadcaster fans pipeline progress out to registered sinks.
// Publishing never blocks the pipeline; a nil broadcaster is safe to
// call.
type ProgressBroadcaster struct {
	mu     sync.RWMutex
	sinks  []ProgressSink
	logger *slog.Logger
}

// NewProgressBroadcaster creates a broadcaster.
func NewProgressBroadcaster(logger *slog.Logger) *ProgressBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressBroadcaster{logger: logger.With(slog.String("component", "progress"))}
}

// Subscribe registers a sink for all subsequent events.
func (b *ProgressBroadcaster) Subscribe(sink ProgressSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Publish delivers the event to every sink.
func (b *ProgressBroadcaster) Publish(event ProgressEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	sinks := make([]ProgressSink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, sink := range sinks {
		sink.Publish(event)
	}
	b.logger.Debug("progress",
		slog.String("operation_id", event.OperationID),
		slog.String("phase", event.Phase),
		slog.Int("percentage", event.Percentage),
		slog.String("status", event.Status))
}
