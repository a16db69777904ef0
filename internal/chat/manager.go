package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sales-assistant/internal/booking"
)

type entry struct {
	session *Session
	modal   *booking.Modal
}

// Manager owns the live sessions of this process and their booking modals.
type Manager struct {
	deps    Deps
	catalog *booking.Catalog

	mu       sync.RWMutex
	sessions map[string]*entry
	opening  singleflight.Group
}

func NewManager(deps Deps, catalog *booking.Catalog) (*Manager, error) {
	if deps.Leads == nil {
		return nil, errors.New("chat: lead processor must not be nil")
	}
	if catalog == nil {
		catalog = booking.DefaultCatalog()
	}
	return &Manager{
		deps:     deps.withDefaults(),
		catalog:  catalog,
		sessions: make(map[string]*entry),
	}, nil
}

// Catalog returns the booking catalog shared by every modal.
func (m *Manager) Catalog() *booking.Catalog {
	return m.catalog
}

// Offline reports whether sessions run without a response generator.
func (m *Manager) Offline() bool {
	return m.deps.Generator == nil
}

// Open returns the live session for sessionID, resuming it from the store
// or starting a new one when it is not in memory. Concurrent opens of the
// same id share one initialization.
func (m *Manager) Open(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return m.start(ctx, ""), nil
	}
	if e, ok := m.live(sessionID); ok {
		return e.session, nil
	}
	v, _, _ := m.opening.Do(sessionID, func() (any, error) {
		if e, ok := m.live(sessionID); ok {
			return e.session, nil
		}
		return m.start(ctx, sessionID), nil
	})
	return v.(*Session), nil
}

func (m *Manager) start(ctx context.Context, resumeID string) *Session {
	s := newSession(m.deps)
	s.Initialize(ctx, resumeID)
	id := s.ID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e.session
	}
	m.sessions[id] = &entry{session: s, modal: booking.NewModal(m.catalog)}
	return s
}

func (m *Manager) live(sessionID string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	return e, ok
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// Modal returns the booking modal of a live session.
func (m *Manager) Modal(sessionID string) (*booking.Modal, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.modal, nil
}

// Send runs a turn and opens the session's booking modal when the reply
// confirmed a booking.
func (m *Manager) Send(ctx context.Context, sessionID, text string) (Result, booking.View, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return Result{}, booking.View{}, err
	}
	res, err := e.session.SendMessage(ctx, text)
	if err != nil {
		return Result{}, e.modal.View(), err
	}
	if res.HasBookingIntent {
		return res, e.modal.Open(res.ServiceType), nil
	}
	return res, e.modal.View(), nil
}

// Turn opens or resumes sessionID and runs one turn on it. It serves
// stateless transports that carry the session id on every request.
func (m *Manager) Turn(ctx context.Context, sessionID, text string) (string, Result, booking.View, error) {
	s, err := m.Open(ctx, sessionID)
	if err != nil {
		return "", Result{}, booking.View{}, err
	}
	id := s.ID()
	res, view, err := m.Send(ctx, id, text)
	return id, res, view, err
}

// Prune drops sessions idle for longer than idle and returns how many were
// removed. Sessions with a turn in flight are kept.
func (m *Manager) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.sessions {
		if e.session.Busy() || e.session.idleSince().After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) lookup(sessionID string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, newError(ErrorSessionNotFound, "unknown_session", nil)
	}
	return e, nil
}
