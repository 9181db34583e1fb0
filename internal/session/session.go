package session

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message. Messages are immutable once
// appended to a session.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one ongoing conversation, identified by an opaque
// thread id supplied at startup or generated.
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
}
