package session

import (
	"sync"
	"time"
)

// Store maps a session id to its ordered message history. It lives for the
// process lifetime; nothing is persisted across restarts.
//
// The conversation loop is strictly sequential per session, but session
// creation and appends are mutex-guarded so concurrent sessions are safe if a
// caller ever issues them.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	model string

	// maxTurns, when non-zero, caps history at maxTurns*2 messages by
	// dropping the oldest. Zero means unbounded, matching the source
	// system's behavior.
	maxTurns int
}

// NewStore creates an empty in-memory store. Sessions created through it are
// tagged with the given model name.
func NewStore(model string, maxTurns int) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		model:    model,
		maxTurns: maxTurns,
	}
}

// GetOrCreate returns the session for id, creating an empty one on first
// reference. It never fails.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id)
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{
		ID:        id,
		StartTime: time.Now(),
		Model:     s.model,
		Messages:  []Message{},
	}
	s.sessions[id] = sess
	return sess
}

// Append adds msg to the end of the session's history, creating the session
// if it does not exist yet. Message content is not validated.
func (s *Store) Append(id string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(id)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	sess.Messages = append(sess.Messages, msg)

	if s.maxTurns > 0 {
		if max := s.maxTurns * 2; len(sess.Messages) > max {
			sess.Messages = sess.Messages[len(sess.Messages)-max:]
		}
	}
}

// History returns a copy of the ordered history for id. The copy keeps
// callers from observing appends made after the snapshot.
func (s *Store) History(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// Len reports the number of messages stored for id.
func (s *Store) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return 0
	}
	return len(sess.Messages)
}
