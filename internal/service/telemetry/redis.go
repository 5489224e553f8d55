package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
)

// DefaultRedisStream is the stream key events are appended to.
const DefaultRedisStream = "mindcare:events"

// RedisSink appends events to a Redis stream for an external analytics store.
type RedisSink struct {
	log    *logger.Logger
	rdb    *goredis.Client
	stream string
	maxLen int64
}

// NewRedisSink connects to addr and verifies the connection with PING.
func NewRedisSink(ctx context.Context, addr, stream string, log *logger.Logger) (*RedisSink, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if strings.TrimSpace(stream) == "" {
		stream = DefaultRedisStream
	}
	if log == nil {
		log = logger.Nop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisSink(rdb, stream, log), nil
}

func newRedisSink(rdb *goredis.Client, stream string, log *logger.Logger) *RedisSink {
	return &RedisSink{
		log:    log.With("component", "telemetry.redis"),
		rdb:    rdb,
		stream: stream,
		maxLen: 100000,
	}
}

func (s *RedisSink) LogEvent(ctx context.Context, event Event) error {
	risk, err := json.Marshal(event.Risk)
	if err != nil {
		return err
	}
	return s.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          event.ID,
			"sessionHash": event.SessionHash,
			"emotion":     event.Emotion,
			"risk":        string(risk),
			"escalated":   event.Escalated,
			"degraded":    event.Degraded,
			"attempts":    event.Attempts,
			"latencyMs":   event.LatencyMs,
			"createdAt":   event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
