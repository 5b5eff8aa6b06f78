package domain

import (
	"time"
)

// Message roles stored in a chat session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a session history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession holds the server-side history for one client session id.
type ChatSession struct {
	ID        string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exchange returns the user/assistant pair recorded after a successful turn.
func Exchange(query, reply string) []Message {
	return []Message{
		{Role: RoleUser, Content: query},
		{Role: RoleAssistant, Content: reply},
	}
}

// IsExpired reports whether the session has been idle longer than ttl.
// A zero ttl never expires.
func (s *ChatSession) IsExpired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
