package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"sales-assistant/internal/domain"
)

// MemoryStore is a process-local session store for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	messages map[string][]domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		messages: make(map[string][]domain.Message),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrSessionExists
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok, nil
}

func (m *MemoryStore) SetSessionTitle(_ context.Context, sessionID, title string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	s.Title = title
	s.UpdatedAt = at
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	if s, ok := m.sessions[msg.SessionID]; ok {
		s.UpdatedAt = msg.CreatedAt
		m.sessions[msg.SessionID] = s
	}
	return nil
}

// History returns up to limit of the most recent messages, oldest first.
func (m *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	msgs := append([]domain.Message(nil), m.messages[sessionID]...)
	m.mu.RUnlock()

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
