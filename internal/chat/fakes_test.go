package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/lead"
)

type stubGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]domain.ChatMessage

	started chan struct{}
	release chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, append([]domain.ChatMessage(nil), history...))
	n := len(g.calls)
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	if n <= len(g.replies) {
		return g.replies[n-1], nil
	}
	return "ok", nil
}

func (g *stubGenerator) lastCall() []domain.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[len(g.calls)-1]
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type stubLeads struct {
	result lead.Result
	calls  int
}

func (l *stubLeads) HasContactIntent(text string) bool {
	return lead.DetectContactIntent(text)
}

func (l *stubLeads) ProcessMessage(_ context.Context, _ string, _ string) lead.Result {
	l.calls++
	return l.result
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	messages map[string][]domain.Message
	err      error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]domain.Session{}, messages: map[string][]domain.Message{}}
}

func (m *memStore) CreateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Session{}, false, m.err
	}
	s, ok := m.sessions[id]
	return s, ok, nil
}

func (m *memStore) SetSessionTitle(_ context.Context, id, title string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	s := m.sessions[id]
	s.Title = title
	s.UpdatedAt = at
	m.sessions[id] = s
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *memStore) History(_ context.Context, id string, _ int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Message(nil), m.messages[id]...), nil
}

func (m *memStore) stored(id string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages[id]...)
}

type stubLock struct {
	acquired bool
	err      error
	released int
}

func (l *stubLock) Acquire(context.Context, string) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

var errBoom = errors.New("boom")
