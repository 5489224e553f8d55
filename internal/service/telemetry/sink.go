// Package telemetry records anonymous per-message analytics events.
package telemetry

import (
	"context"
	"time"

	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
)

// Event is an anonymous record of one handled message. It never carries the
// message text or the raw session id.
type Event struct {
	ID          string    `json:"id"`
	SessionHash string    `json:"sessionHash,omitempty"`
	Emotion     string    `json:"emotion"`
	Risk        []string  `json:"risk"`
	Escalated   bool      `json:"escalated"`
	Degraded    bool      `json:"degraded"`
	Attempts    int       `json:"attempts"`
	LatencyMs   int64     `json:"latencyMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Sink persists events. Implementations must be safe for concurrent use.
type Sink interface {
	LogEvent(ctx context.Context, event Event) error
	Close() error
}

// NoopSink only writes events to the debug log.
type NoopSink struct {
	log *logger.Logger
}

// NewNoopSink returns a sink that drops events after logging them.
func NewNoopSink(log *logger.Logger) *NoopSink {
	if log == nil {
		log = logger.Nop()
	}
	return &NoopSink{log: log.With("component", "telemetry.noop")}
}

func (s *NoopSink) LogEvent(_ context.Context, event Event) error {
	s.log.Debug("telemetry event",
		"emotion", event.Emotion,
		"risk", event.Risk,
		"escalated", event.Escalated,
		"degraded", event.Degraded,
		"attempts", event.Attempts,
	)
	return nil
}

func (s *NoopSink) Close() error { return nil }
