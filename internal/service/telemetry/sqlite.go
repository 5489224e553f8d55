package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
)

// SQLiteSink stores events in a local SQLite database.
type SQLiteSink struct {
	log *logger.Logger
	db  *sql.DB
}

// NewSQLiteSink opens or creates the database at dbPath.
func NewSQLiteSink(dbPath string, log *logger.Logger) (*SQLiteSink, error) {
	if log == nil {
		log = logger.Nop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteSink{log: log.With("component", "telemetry.sqlite"), db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS anonymous_events (
		id           TEXT PRIMARY KEY,
		session_hash TEXT,
		emotion      TEXT NOT NULL,
		risk         TEXT NOT NULL DEFAULT '[]',
		escalated    INTEGER NOT NULL DEFAULT 0,
		degraded     INTEGER NOT NULL DEFAULT 0,
		attempts     INTEGER NOT NULL DEFAULT 0,
		latency_ms   INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_created ON anonymous_events(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_events_session ON anonymous_events(session_hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSink) LogEvent(ctx context.Context, event Event) error {
	risk, err := json.Marshal(event.Risk)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO anonymous_events (id, session_hash, emotion, risk, escalated, degraded, attempts, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.SessionHash, event.Emotion, string(risk),
		boolToInt(event.Escalated), boolToInt(event.Degraded),
		event.Attempts, event.LatencyMs, event.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(session_hash, ''), emotion, risk, escalated, degraded, attempts, latency_ms, created_at
		 FROM anonymous_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                   Event
			risk, created       string
			escalated, degraded int
		)
		if err := rows.Scan(&e.ID, &e.SessionHash, &e.Emotion, &risk, &escalated, &degraded, &e.Attempts, &e.LatencyMs, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(risk), &e.Risk); err != nil {
			return nil, fmt.Errorf("decode risk for %s: %w", e.ID, err)
		}
		e.Escalated = escalated != 0
		e.Degraded = degraded != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
