package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare-ai/mindcare/backend/internal/model/chat"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session id")
)

// DefaultTranscriptLimit caps the turns kept per session; older turns are dropped.
const DefaultTranscriptLimit = 200

const (
	// DefaultMaxSessions bounds the registry; the least recently active
	// session is evicted when a new one would exceed it.
	DefaultMaxSessions = 10000
	// DefaultSessionTTL is how long a session may stay idle before it expires.
	DefaultSessionTTL = 24 * time.Hour
)

const maxSessionIDLength = 128

type entry struct {
	session  chat.Session
	messages []chat.Message
	// issued marks ids generated here rather than chosen by a client.
	issued bool
}

// Service keeps anonymous sessions and their transcripts in memory.
type Service struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	limit       int
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithMaxSessions overrides DefaultMaxSessions. Values <= 0 are ignored.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionTTL overrides DefaultSessionTTL. Values <= 0 are ignored.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService bootstraps the in-memory session registry.
func NewService(opts ...Option) *Service {
	s := &Service{
		sessions:    make(map[string]*entry),
		limit:       DefaultTranscriptLimit,
		maxSessions: DefaultMaxSessions,
		ttl:         DefaultSessionTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession provisions a session with a server-assigned id.
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	return s.EnsureSession(ctx, "")
}

// EnsureSession returns the session for sessionID, registering it when the
// client-supplied id is new or expired. An empty id gets a fresh uuid.
func (s *Service) EnsureSession(_ context.Context, sessionID string) (chat.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if len(sessionID) > maxSessionIDLength {
		return chat.Session{}, ErrInvalidSession
	}
	issued := sessionID == ""
	if issued {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.sessions[sessionID]; ok {
		if !s.expired(e, now) {
			return e.session, nil
		}
		delete(s.sessions, sessionID)
	}

	if len(s.sessions) >= s.maxSessions {
		s.pruneLocked(now)
	}
	for len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}

	session := chat.Session{ID: sessionID, CreatedAt: now, LastActiveAt: now}
	s.sessions[sessionID] = &entry{
		session:  session,
		messages: make([]chat.Message, 0, 16),
		issued:   issued,
	}
	return session, nil
}

// PruneExpired drops every session idle for longer than the TTL and reports
// how many were removed.
func (s *Service) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

// RunJanitor prunes expired sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PruneExpired()
		}
	}
}

func (s *Service) expired(e *entry, now time.Time) bool {
	return now.Sub(e.session.LastActiveAt) > s.ttl
}

func (s *Service) pruneLocked(now time.Time) int {
	removed := 0
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Service) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.session.LastActiveAt.Before(oldest) {
			oldestID, oldest = id, e.session.LastActiveAt
		}
	}
	delete(s.sessions, oldestID)
}

// lookupLocked returns the live entry for sessionID; callers hold s.mu.
func (s *Service) lookupLocked(sessionID string) (*entry, bool) {
	e, ok := s.sessions[sessionID]
	if !ok || s.expired(e, s.now()) {
		return nil, false
	}
	return e, true
}

// SaveMessage appends a message to the session history.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(message.SessionID)
	if !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now()
	}

	history := append(e.messages, message)
	if s.limit > 0 && len(history) > s.limit {
		history = append([]chat.Message(nil), history[len(history)-s.limit:]...)
	}
	e.messages = history
	e.session.LastActiveAt = message.CreatedAt
	return nil
}

// RecordExchange stores the user turn and the pipeline reply in order.
func (s *Service) RecordExchange(ctx context.Context, userText string, reply wellbeing.Reply) error {
	if err := s.SaveMessage(ctx, chat.Message{
		SessionID: reply.SessionID,
		Sender:    chat.SenderUser,
		Content:   userText,
		Emotion:   reply.Emotion.String(),
	}); err != nil {
		return err
	}
	return s.SaveMessage(ctx, chat.Message{
		SessionID: reply.SessionID,
		Sender:    chat.SenderAssistant,
		Content:   reply.Reply,
		Risk:      append([]string(nil), reply.Risk...),
		Escalated: reply.Escalated,
	})
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.lookupLocked(sessionID)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.lookupLocked(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copyMessages(e.messages), nil
}

// LoadIssuedTranscript is LoadTranscript restricted to sessions whose id was
// generated by CreateSession or an empty EnsureSession. Client-chosen ids
// can be guessed, so their transcripts report ErrSessionNotFound.
func (s *Service) LoadIssuedTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.lookupLocked(sessionID)
	if !ok || !e.issued {
		return nil, ErrSessionNotFound
	}
	return copyMessages(e.messages), nil
}

func copyMessages(messages []chat.Message) []chat.Message {
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied
}
