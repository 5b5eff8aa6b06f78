package store

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/agentchat/internal/domain"
)

// MemoryStore keeps sessions in process memory, evicting the least recently
// active session once maxSessions is reached.
type MemoryStore struct {
	mu          sync.Mutex
	maxSessions int
	items       map[string]*list.Element
	lru         *list.List
	now         func() time.Time
}

type memoryEntry struct {
	session *domain.ChatSession
}

// NewMemory returns a MemoryStore. maxSessions <= 0 means unbounded.
func NewMemory(maxSessions int) *MemoryStore {
	return &MemoryStore{
		maxSessions: maxSessions,
		items:       make(map[string]*list.Element),
		lru:         list.New(),
		now:         time.Now,
	}
}

// History returns a copy of the session's messages.
func (m *MemoryStore) History(_ context.Context, sessionID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[sessionID]
	if !ok {
		return []domain.Message{}, nil
	}
	msgs := elem.Value.(*memoryEntry).session.Messages
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Append adds msgs to the session and marks it most recently used.
func (m *MemoryStore) Append(_ context.Context, sessionID string, msgs ...domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if elem, ok := m.items[sessionID]; ok {
		s := elem.Value.(*memoryEntry).session
		s.Messages = append(s.Messages, msgs...)
		s.UpdatedAt = now
		m.lru.MoveToFront(elem)
		return nil
	}

	if m.maxSessions > 0 && len(m.items) >= m.maxSessions {
		m.evictOldest()
	}
	s := &domain.ChatSession{
		ID:        sessionID,
		Messages:  append([]domain.Message(nil), msgs...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items[sessionID] = m.lru.PushFront(&memoryEntry{session: s})
	return nil
}

func (m *MemoryStore) evictOldest() {
	elem := m.lru.Back()
	if elem == nil {
		return
	}
	s := elem.Value.(*memoryEntry).session
	m.lru.Remove(elem)
	delete(m.items, s.ID)
	slog.Debug("Evicted least recently used session", "session_id", s.ID)
}

// SessionCount returns the number of sessions held.
func (m *MemoryStore) SessionCount(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

// CleanupExpiredSessions removes sessions idle longer than ttl.
func (m *MemoryStore) CleanupExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int64
	// Oldest sessions sit at the back, so stop at the first live one.
	for elem := m.lru.Back(); elem != nil; {
		s := elem.Value.(*memoryEntry).session
		if !s.IsExpired(ttl, now) {
			break
		}
		prev := elem.Prev()
		m.lru.Remove(elem)
		delete(m.items, s.ID)
		removed++
		elem = prev
	}
	return removed, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
