// Package handler provides HTTP handlers for the conversation gateway.
package handler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctxbridge/ctxbridge/internal/adapter"
	"github.com/ctxbridge/ctxbridge/internal/domain"
)

const (
	// DefaultSessionTTL is the default idle lifetime of a session.
	DefaultSessionTTL = 30 * time.Minute

	// cleanupInterval is how often the idle-session sweeper runs.
	cleanupInterval = 1 * time.Minute
)

// Session couples one adapter client with gateway bookkeeping. A history has
// exactly one logical owner, so every operation on the client goes through
// the session's mutex: concurrent HTTP requests against the same session are
// serialized here, not in the history itself.
type Session struct {
	ID string

	// lastActive is stored atomically (unix nanoseconds) so the eviction
	// sweeper can read it without the session mutex, which Generate holds
	// for the full duration of a vendor call.
	lastActive atomic.Int64

	mu     sync.Mutex
	client adapter.Client
}

// touch records the session as active now.
func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Provider returns the vendor behind the session's client.
func (s *Session) Provider() domain.ProviderType {
	return s.client.Provider()
}

// Model returns the model the session's client sends requests to.
func (s *Session) Model() string {
	return s.client.Model()
}

// Generate runs one conversation turn.
func (s *Session) Generate(ctx context.Context, prompt, system string) (string, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.GenerateResponse(ctx, prompt, system)
}

// Context returns an independent snapshot of the session transcript.
func (s *Session) Context() []domain.Message {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Context()
}

// SetContext replaces the session transcript with a copy of messages.
func (s *Session) SetContext(messages []domain.Message) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetContext(messages)
}

// Clear empties the session transcript.
func (s *Session) Clear() {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.ClearContext()
}

// idleSince reports the last time the session was used. It never takes the
// session mutex, so the sweeper stays responsive while a turn is in flight.
func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// SessionStore is a thread-safe registry of chat sessions with idle-TTL
// eviction. Contexts do not persist across process runs; eviction only
// bounds memory within one run.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger

	// Stats
	created int64
	evicted int64
}

// SessionStoreOption is a functional option for configuring SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionTTL sets a custom idle lifetime for sessions.
func WithSessionTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(logger *slog.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// NewSessionStore creates a new SessionStore instance.
// It starts a background goroutine that evicts idle sessions.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      DefaultSessionTTL,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.startCleanup()

	return s
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// GetOrCreate retrieves the session with the given ID, building a new client
// for it when absent. Returns the session and whether it was created.
func (s *SessionStore) GetOrCreate(id string, build func() (adapter.Client, error)) (*Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session, false, nil
	}

	client, err := build()
	if err != nil {
		return nil, false, err
	}

	session := &Session{
		ID:     id,
		client: client,
	}
	session.touch()
	s.sessions[id] = session
	s.created++

	return session, true, nil
}

// Delete removes a session entirely.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// startCleanup runs a background goroutine that periodically evicts idle sessions.
func (s *SessionStore) startCleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

// cleanup evicts all sessions idle for longer than the TTL.
func (s *SessionStore) cleanup() {
	deadline := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, session := range s.sessions {
		if session.idleSince().Before(deadline) {
			delete(s.sessions, id)
			s.evicted++
			expired++
		}
	}

	if expired > 0 && s.logger != nil {
		s.logger.Debug("session cleanup",
			slog.Int("evicted_sessions", expired),
			slog.Int("remaining_sessions", len(s.sessions)),
		)
	}
}

// Stats returns session accounting: live count, total created, total evicted.
func (s *SessionStore) Stats() (active int, created, evicted int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), s.created, s.evicted
}
