package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"localchat/internal/session"
)

// CachedResponse represents a cached model reply.
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// Key derives a cache key from the ordered outbound history. Two identical
// histories always hash equal, so a repeated conversation prefix reuses the
// prior reply without a model call.
func Key(messages []session.Message) string {
	h := sha256.New()
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Store is a process-local response cache.
type Store struct {
	entries sync.Map // key -> CachedResponse
	ttl     time.Duration
}

// NewStore creates a cache whose entries expire after ttl. A zero ttl means
// entries never expire.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl}
}

// Get returns the cached reply for key, if present and unexpired.
func (s *Store) Get(key string) (string, bool) {
	val, ok := s.entries.Load(key)
	if !ok {
		return "", false
	}
	cached := val.(CachedResponse)
	if s.ttl > 0 && time.Since(cached.Timestamp) > s.ttl {
		s.entries.Delete(key)
		return "", false
	}
	return cached.Response, true
}

// Put stores a reply under key.
func (s *Store) Put(key, response string) {
	s.entries.Store(key, CachedResponse{
		Response:  response,
		Timestamp: time.Now(),
	})
}
