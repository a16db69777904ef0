package booking

import (
	"errors"
	"fmt"
	"sync"
)

type State string

const (
	StateClosed           State = "closed"
	StateServiceSelection State = "service_selection"
	StateConfirmation     State = "confirmation"
	StateCalendarView     State = "calendar_view"
)

var (
	ErrInvalidTransition = errors.New("booking: invalid transition")
	ErrUnknownService    = errors.New("booking: unknown service")
)

// View is what the widget renders for the current state. Services is only
// set during selection and CalendarURL only in the calendar view.
type View struct {
	State       State     `json:"state"`
	Services    []Service `json:"services,omitempty"`
	Selected    *Service  `json:"selected,omitempty"`
	CalendarURL string    `json:"calendarUrl,omitempty"`
}

// Modal is the booking flow: service selection, confirmation, then the
// embedded calendar. It is safe for concurrent use.
type Modal struct {
	catalog *Catalog

	mu       sync.Mutex
	state    State
	selected *Service
	detected string
}

func NewModal(catalog *Catalog) *Modal {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Modal{catalog: catalog, state: StateClosed}
}

// Open (re)starts the flow at service selection, jumping to confirmation
// when detected, or a service detected while closed, resolves.
func (m *Modal) Open(detected string) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	if detected != "" {
		m.detected = detected
	}
	m.state = StateServiceSelection
	m.selected = nil
	m.advanceOnDetected()
	return m.viewLocked()
}

// SetDetectedService records an externally detected service. While in
// selection it advances straight to confirmation.
func (m *Modal) SetDetectedService(detected string) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detected = detected
	if m.state == StateServiceSelection {
		m.advanceOnDetected()
	}
	return m.viewLocked()
}

// Select picks a service by id during selection.
func (m *Modal) Select(id string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateServiceSelection {
		return m.viewLocked(), fmt.Errorf("%w: select from %s", ErrInvalidTransition, m.state)
	}
	s, ok := m.catalog.ByID(id)
	if !ok {
		return m.viewLocked(), fmt.Errorf("%w: %q", ErrUnknownService, id)
	}
	m.selected = &s
	m.state = StateConfirmation
	return m.viewLocked(), nil
}

// Confirm moves from confirmation to the calendar view.
func (m *Modal) Confirm() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConfirmation || m.selected == nil {
		return m.viewLocked(), fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, m.state)
	}
	m.state = StateCalendarView
	return m.viewLocked(), nil
}

// Back steps calendar view -> confirmation -> service selection.
func (m *Modal) Back() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateCalendarView:
		m.state = StateConfirmation
	case StateConfirmation:
		m.state = StateServiceSelection
		m.selected = nil
		m.detected = ""
	default:
		return m.viewLocked(), fmt.Errorf("%w: back from %s", ErrInvalidTransition, m.state)
	}
	return m.viewLocked(), nil
}

// Close resets the flow from any state.
func (m *Modal) Close() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateClosed
	m.selected = nil
	m.detected = ""
	return m.viewLocked()
}

func (m *Modal) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Modal) advanceOnDetected() {
	if m.detected == "" {
		return
	}
	if s, ok := m.catalog.Resolve(m.detected); ok {
		m.selected = &s
		m.state = StateConfirmation
	}
}

func (m *Modal) viewLocked() View {
	v := View{State: m.state}
	switch m.state {
	case StateServiceSelection:
		v.Services = m.catalog.All()
	case StateCalendarView:
		v.CalendarURL = m.selected.CalendarURL
	}
	if m.selected != nil && m.state != StateClosed {
		s := *m.selected
		v.Selected = &s
	}
	return v
}
