package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mindcare-ai/mindcare/backend/internal/config"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
)

// Open selects the sink named by cfg. Any initialization failure is logged
// and degrades to a NoopSink so telemetry can never block start-up.
func Open(ctx context.Context, cfg config.TelemetryConfig, log *logger.Logger) Sink {
	if log == nil {
		log = logger.Nop()
	}

	switch strings.ToLower(cfg.Sink) {
	case "", "noop", "none":
		log.Info("telemetry disabled, using noop sink")
	case "redis":
		sink, err := NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisStream, log)
		if err == nil {
			log.Info("telemetry redis sink ready", "addr", cfg.RedisAddr, "stream", sink.stream)
			return sink
		}
		log.Warn("telemetry redis sink unavailable, falling back to noop", "error", err)
	case "sqlite":
		sink, err := NewSQLiteSink(cfg.SQLitePath, log)
		if err == nil {
			log.Info("telemetry sqlite sink ready", "path", cfg.SQLitePath)
			return sink
		}
		log.Warn("telemetry sqlite sink unavailable, falling back to noop", "error", err)
	default:
		log.Warn("unknown telemetry sink, falling back to noop", "sink", cfg.Sink)
	}
	return NewNoopSink(log)
}

// Recorder stamps events and hands them to a Sink without ever failing the caller.
type Recorder struct {
	sink    Sink
	anon    *Anonymizer
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRecorder wraps sink. A nil sink records nothing.
func NewRecorder(sink Sink, anon *Anonymizer, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	if anon == nil {
		anon = NewAnonymizer("")
	}
	return &Recorder{
		sink:    sink,
		anon:    anon,
		log:     log.With("component", "telemetry"),
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Record fills in id, timestamp and session hash, then writes the event on a
// context detached from the caller's cancellation.
func (r *Recorder) Record(ctx context.Context, sessionID string, event Event) {
	if r == nil || r.sink == nil {
		return
	}
	event.ID = ulid.Make().String()
	event.SessionHash = r.anon.Hash(sessionID)
	event.CreatedAt = r.now().UTC()
	if event.Risk == nil {
		event.Risk = []string{}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.sink.LogEvent(writeCtx, event); err != nil {
		r.log.Warn("failed to record telemetry event", "error", err)
	}
}
