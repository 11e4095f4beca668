package store

import (
	"fmt"
	"sync"

	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
)

// Attrs are the optional attributes supplied when a session is created.
type Attrs struct {
	CustomerEmail string
	CustomerID    string
}

// Stats are the registry's lifetime counters.
type Stats struct {
	SessionsCreated int64 `json:"sessions_created"`
	SessionsActive  int   `json:"sessions_active"`
	SessionsEnded   int64 `json:"sessions_ended"`
	TotalMessages   int64 `json:"total_messages"`
}

// Options configures a Store.
type Options struct {
	// Logger receives registry diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Store holds all active conversation contexts keyed by session id. All
// operations take the table mutex; see the package comment for the
// single-writer-per-session assumption on field mutations.
type Store struct {
	mu       sync.Mutex
	contexts map[string]*core.ConversationContext
	stats    Stats
	logger   logging.Logger
}

// New constructs an empty registry. Create one instance per workflow (or per
// test case) and inject it.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		contexts: make(map[string]*core.ConversationContext),
		logger:   opts.Logger,
	}
}

// CreateSession creates a new conversation context. It fails with
// ErrSessionExists if the id is already present; the registry never silently
// overwrites a context on creation.
func (s *Store) CreateSession(sessionID string, attrs Attrs) (*core.ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[sessionID]; ok {
		return nil, fmt.Errorf("create session %q: %w", sessionID, ErrSessionExists)
	}
	ctx := s.createLocked(sessionID, attrs)
	return ctx, nil
}

// Get returns the context for sessionID, or false if it is unknown.
func (s *Store) Get(sessionID string) (*core.ConversationContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	return ctx, ok
}

// GetOrCreate returns the existing context or lazily creates one.
func (s *Store) GetOrCreate(sessionID string, attrs Attrs) *core.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.contexts[sessionID]; ok {
		return ctx
	}
	return s.createLocked(sessionID, attrs)
}

// createLocked allocates and stores a new context; caller must already hold
// the table mutex.
func (s *Store) createLocked(sessionID string, attrs Attrs) *core.ConversationContext {
	ctx := core.NewConversationContext(sessionID)
	ctx.CustomerEmail = attrs.CustomerEmail
	ctx.CustomerID = attrs.CustomerID
	s.contexts[sessionID] = ctx
	s.stats.SessionsCreated++
	s.stats.SessionsActive++
	s.logger.Info("created session", "session_id", sessionID)
	return ctx
}

// AddMessage appends a message to the session and returns a value copy of it.
// An unknown session is a logged no-op reported via the second return value.
func (s *Store) AddMessage(sessionID string, sender core.Sender, text string, extras ...core.MessageExtra) (core.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		s.logger.Warn("add message: unknown session", "session_id", sessionID)
		return core.Message{}, false
	}
	msg := ctx.AddMessage(sender, text, extras...)
	s.stats.TotalMessages++
	return *msg, true
}

// UpdateSentiment records the current sentiment for the session and attaches
// the label to the most recent user message.
func (s *Store) UpdateSentiment(sessionID, sentiment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		s.logger.Warn("update sentiment: unknown session", "session_id", sessionID)
		return false
	}
	ctx.UpdateSentiment(sentiment)
	return true
}

// UpdateIntent records the current intent and confidence for the session and
// attaches the label to the most recent user message.
func (s *Store) UpdateIntent(sessionID, intent string, confidence float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		s.logger.Warn("update intent: unknown session", "session_id", sessionID)
		return false
	}
	ctx.UpdateIntent(intent, confidence)
	return true
}

// MergeEntities merges entities last-write-wins into the session.
func (s *Store) MergeEntities(sessionID string, entities map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		s.logger.Warn("merge entities: unknown session", "session_id", sessionID)
		return false
	}
	ctx.MergeEntities(entities)
	return true
}

// Escalate marks the session escalated and records the reason.
func (s *Store) Escalate(sessionID, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		return false
	}
	ctx.Escalate(reason)
	return true
}

// SetStatus overwrites the session status (terminal transitions set
// externally, e.g. RESOLVED, ABANDONED).
func (s *Store) SetStatus(sessionID string, status core.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		return false
	}
	ctx.Status = status
	return true
}

// SetOperator records the operator handling an escalated session.
func (s *Store) SetOperator(sessionID, operatorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		return false
	}
	ctx.OperatorID = operatorID
	return true
}

// Snapshot returns a deep value copy of the session state for event payloads.
func (s *Store) Snapshot(sessionID string) (core.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		return core.Snapshot{}, false
	}
	return ctx.Snapshot(), true
}

// Delete removes the session from the registry and returns the removed
// context. It is the only way a context leaves the registry; callers outside
// the coordinator invoke it only after a terminal event.
func (s *Store) Delete(sessionID string) (*core.ConversationContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[sessionID]
	if !ok {
		return nil, false
	}
	delete(s.contexts, sessionID)
	s.stats.SessionsActive--
	s.stats.SessionsEnded++
	s.logger.Info("deleted session", "session_id", sessionID)
	return ctx, true
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// SessionIDs returns the ids of all active sessions.
func (s *Store) SessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns a copy of the registry counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.SessionsActive = len(s.contexts)
	return stats
}

// Clear removes every session. Intended for tests and emergency cleanup.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.contexts)
	s.contexts = make(map[string]*core.ConversationContext)
	s.stats.SessionsActive = 0
	s.logger.Warn("cleared all sessions", "removed", removed)
}
