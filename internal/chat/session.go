package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/intent"
	"sales-assistant/internal/lead"
	"sales-assistant/internal/metrics"
	"sales-assistant/pkg/logging"
)

const (
	titleWords    = 6
	titleMaxRunes = 50

	defaultGenerationTimeout = 30 * time.Second
	defaultHistoryLimit      = 50
	defaultMaxMessageLength  = 2000

	thinkingPlaceholder   = "Thinking..."
	processingPlaceholder = "Processing your details..."
)

// Status is the session lifecycle state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInitializing  Status = "initializing"
	StatusReady         Status = "ready"
)

var errOffline = errors.New("chat: no response generator configured")

// LeadProcessor runs lead capture for one user message.
type LeadProcessor interface {
	HasContactIntent(text string) bool
	ProcessMessage(ctx context.Context, text, sessionID string) lead.Result
}

// Generator produces the next assistant reply for an ordered conversation.
type Generator interface {
	Generate(ctx context.Context, history []domain.ChatMessage) (string, error)
}

// Store is the best-effort persistence for sessions and their messages.
type Store interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, bool, error)
	SetSessionTitle(ctx context.Context, sessionID, title string, at time.Time) error
	AppendMessage(ctx context.Context, msg domain.Message) error
	History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
}

// TurnLock serialises turns of one session across processes.
type TurnLock interface {
	Acquire(ctx context.Context, sessionID string) (release func(), acquired bool, err error)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Leads     LeadProcessor
	Generator Generator // nil runs sessions in offline mode
	Store     Store
	Lock      TurnLock
	Logger    *logging.Logger
	Metrics   *metrics.Collector
	Contact   lead.Contact

	LeadDelay         time.Duration
	GenerationTimeout time.Duration
	HistoryLimit      int
	MaxMessageLength  int // in runes
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.LeadDelay < 0 {
		d.LeadDelay = 0
	}
	if d.GenerationTimeout <= 0 {
		d.GenerationTimeout = defaultGenerationTimeout
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = defaultHistoryLimit
	}
	if d.MaxMessageLength <= 0 {
		d.MaxMessageLength = defaultMaxMessageLength
	}
	return d
}

// Result is returned by SendMessage. LeadCaptured is only set for turns
// handled by lead capture.
type Result struct {
	HasBookingIntent bool   `json:"hasBookingIntent"`
	ServiceType      string `json:"serviceType,omitempty"`
	SuggestedService string `json:"suggestedService,omitempty"`
	LeadCaptured     *bool  `json:"leadCaptured,omitempty"`
	Response         string `json:"response"`
}

// Session owns one conversation's message sequence. At most one turn runs
// at a time; a second SendMessage during a turn is rejected.
type Session struct {
	deps Deps

	mu         sync.Mutex
	status     Status
	awaiting   bool
	record     domain.Session
	messages   []domain.Message
	lastTag    intent.Tag
	lastActive time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func newSession(deps Deps) *Session {
	return &Session{
		deps:   deps,
		status: StatusUninitialized,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepContext,
	}
}

// ID returns the session identifier, empty before Initialize.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.ID
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Busy reports whether a turn is awaiting its response.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// Record returns the session record.
func (s *Session) Record() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Messages returns a copy of the message sequence, placeholders included.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// Initialize resumes resumeID from the store when it has history, otherwise
// starts a new conversation with a welcome message. Persistence failures
// never keep the session from becoming ready.
func (s *Session) Initialize(ctx context.Context, resumeID string) {
	s.mu.Lock()
	if s.status != StatusUninitialized {
		s.mu.Unlock()
		return
	}
	s.status = StatusInitializing
	s.mu.Unlock()

	if record, history, ok := s.resume(ctx, resumeID); ok {
		s.mu.Lock()
		s.record = record
		s.messages = history
		s.lastTag = lastAssistantTag(history)
		s.lastActive = s.now()
		s.status = StatusReady
		s.mu.Unlock()
		s.deps.Logger.Info("chat session resumed", "session_id", record.ID, "messages", len(history))
		return
	}

	id := resumeID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	now := s.now()
	record := domain.Session{ID: id, CreatedAt: now, UpdatedAt: now}
	welcome := domain.Message{
		ID:        uuid.NewString(),
		SessionID: id,
		Role:      domain.RoleAssistant,
		Content:   s.welcomeMessage(),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.record = record
	s.messages = []domain.Message{welcome}
	s.lastActive = now
	s.status = StatusReady
	s.mu.Unlock()

	if s.deps.Store != nil {
		if err := s.deps.Store.CreateSession(ctx, record); err != nil {
			s.deps.Logger.Warn("failed to persist session", "session_id", id, "err", err)
		}
	}
	s.persist(ctx, welcome)
	s.deps.Logger.Info("chat session started", "session_id", id, "offline", s.deps.Generator == nil)
}

// lastAssistantTag decodes the tag carried by the newest assistant message.
func lastAssistantTag(history []domain.Message) intent.Tag {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			return intent.Decode(history[i].BookingTag).Tag
		}
	}
	return intent.Tag{}
}

func (s *Session) resume(ctx context.Context, id string) (domain.Session, []domain.Message, bool) {
	if id == "" || s.deps.Store == nil {
		return domain.Session{}, nil, false
	}
	record, found, err := s.deps.Store.GetSession(ctx, id)
	if err != nil {
		s.deps.Logger.Warn("failed to load session", "session_id", id, "err", err)
		return domain.Session{}, nil, false
	}
	if !found {
		return domain.Session{}, nil, false
	}
	history, err := s.deps.Store.History(ctx, id, s.deps.HistoryLimit)
	if err != nil {
		s.deps.Logger.Warn("failed to load history", "session_id", id, "err", err)
		return domain.Session{}, nil, false
	}
	if len(history) == 0 {
		return domain.Session{}, nil, false
	}
	return record, history, true
}

// SendMessage runs one user turn. It is rejected without any state change
// when the session is not ready, a turn is already in flight, or text is
// blank. Generation and delivery failures are answered with a fallback
// message, never returned.
func (s *Session) SendMessage(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	switch {
	case s.awaiting:
		s.mu.Unlock()
		return Result{}, newError(ErrorTurnInProgress, "awaiting_response", nil)
	case s.status != StatusReady:
		s.mu.Unlock()
		return Result{}, newError(ErrorNotReady, string(s.status), nil)
	case text == "":
		s.mu.Unlock()
		return Result{}, newError(ErrorInvalidInput, "empty_message", nil)
	case utf8.RuneCountInString(text) > s.deps.MaxMessageLength:
		s.mu.Unlock()
		return Result{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	s.awaiting = true
	sessionID := s.record.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.awaiting = false
		s.lastActive = s.now()
		s.mu.Unlock()
	}()

	if s.deps.Lock != nil {
		release, acquired, err := s.deps.Lock.Acquire(ctx, sessionID)
		switch {
		case err != nil:
			s.deps.Logger.Warn("turn lock unavailable", "session_id", sessionID, "err", err)
		case !acquired:
			return Result{}, newError(ErrorTurnInProgress, "locked_elsewhere", nil)
		default:
			defer release()
		}
	}

	userMsg := s.newMessage(domain.RoleUser, text)
	s.mu.Lock()
	prior := conversation(s.messages)
	previousTag := s.lastTag
	s.messages = append(s.messages, userMsg)
	title := ""
	if s.record.Title == "" {
		title = deriveTitle(text)
		s.record.Title = title
	}
	s.record.UpdatedAt = userMsg.CreatedAt
	s.mu.Unlock()

	s.persist(ctx, userMsg)
	if title != "" && s.deps.Store != nil {
		if err := s.deps.Store.SetSessionTitle(ctx, sessionID, title, userMsg.CreatedAt); err != nil {
			s.deps.Logger.Warn("failed to persist session title", "session_id", sessionID, "err", err)
		}
	}

	if s.deps.Leads.HasContactIntent(text) {
		return s.leadTurn(ctx, sessionID, text), nil
	}
	return s.generatorTurn(ctx, sessionID, text, prior, previousTag), nil
}

func (s *Session) leadTurn(ctx context.Context, sessionID, text string) Result {
	placeholderID := s.appendPlaceholder(processingPlaceholder)
	res := s.deps.Leads.ProcessMessage(ctx, text, sessionID)
	if res.LeadCaptured {
		s.deps.Logger.Info("lead captured", "session_id", sessionID, "delivered", res.Delivered, "sink_response", res.SinkResponse)
	}
	s.sleep(ctx, s.deps.LeadDelay)

	reply := s.replacePlaceholder(placeholderID, res.Response, intent.Tag{})
	s.persist(ctx, reply)
	s.deps.Metrics.ObserveTurn("lead", "ok")

	captured := res.LeadCaptured
	return Result{LeadCaptured: &captured, Response: res.Response}
}

func (s *Session) generatorTurn(ctx context.Context, sessionID, text string, prior []domain.ChatMessage, previousTag intent.Tag) Result {
	placeholderID := s.appendPlaceholder(thinkingPlaceholder)

	outbound, rewritten := intent.ConfirmFollowUp(text, previousTag)
	if rewritten {
		s.deps.Logger.Info("affirmative reply converted to booking confirmation", "session_id", sessionID, "service", previousTag.ServiceID)
	}
	history := append(prior, domain.ChatMessage{Role: domain.RoleUser, Content: outbound})

	raw, err := s.generate(ctx, history)
	var decoded intent.Decoded
	if err == nil {
		decoded = intent.Decode(raw)
		if decoded.Text == "" && decoded.Tag.Kind != intent.KindConfirmed {
			err = errors.New("chat: generator returned an empty reply")
		}
	}
	if err != nil {
		s.deps.Logger.Warn("response generation failed", "session_id", sessionID, "err", err)
		fallback := s.fallbackMessage()
		reply := s.replacePlaceholder(placeholderID, fallback, intent.Tag{})
		s.persist(ctx, reply)
		s.deps.Metrics.ObserveTurn("generator", "fallback")
		return Result{Response: fallback}
	}

	display := decoded.Text
	if display == "" {
		display = bookingOpenedMessage
	}
	if decoded.Count > 1 {
		s.deps.Logger.Warn("reply carried several booking tags; using the first", "session_id", sessionID, "tags", decoded.Count)
	}
	reply := s.replacePlaceholder(placeholderID, display, decoded.Tag)
	s.persist(ctx, reply)
	s.deps.Metrics.ObserveTurn("generator", "ok")

	out := Result{Response: display}
	switch decoded.Tag.Kind {
	case intent.KindConfirmed:
		out.HasBookingIntent = true
		out.ServiceType = decoded.Tag.ServiceID
		s.deps.Metrics.ObserveBookingIntent(decoded.Tag.Kind.String(), decoded.Tag.ServiceID)
	case intent.KindSuggest:
		out.SuggestedService = decoded.Tag.ServiceID
		s.deps.Metrics.ObserveBookingIntent(decoded.Tag.Kind.String(), decoded.Tag.ServiceID)
	}
	return out
}

func (s *Session) generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	if s.deps.Generator == nil {
		return "", errOffline
	}
	genCtx, cancel := context.WithTimeout(ctx, s.deps.GenerationTimeout)
	defer cancel()
	raw, err := s.deps.Generator.Generate(genCtx, history)
	if err != nil {
		return "", fmt.Errorf("chat: generate: %w", err)
	}
	return raw, nil
}

// appendPlaceholder adds a loading message, replacing any existing one.
func (s *Session) appendPlaceholder(content string) string {
	msg := s.newMessage(domain.RoleAssistant, content)
	msg.IsLoading = true

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = withoutPlaceholders(s.messages)
	s.messages = append(s.messages, msg)
	return msg.ID
}

// replacePlaceholder swaps the placeholder for the final assistant message
// and records the tag it carried.
func (s *Session) replacePlaceholder(placeholderID, content string, tag intent.Tag) domain.Message {
	reply := s.newMessage(domain.RoleAssistant, content)
	reply.BookingTag = tag.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := false
	for i, m := range s.messages {
		if m.ID == placeholderID {
			s.messages[i] = reply
			replaced = true
			break
		}
	}
	if !replaced {
		s.messages = append(withoutPlaceholders(s.messages), reply)
	}
	s.lastTag = tag
	s.record.UpdatedAt = reply.CreatedAt
	return reply
}

func (s *Session) persist(ctx context.Context, msg domain.Message) {
	if s.deps.Store == nil || msg.IsLoading {
		return
	}
	if err := s.deps.Store.AppendMessage(ctx, msg); err != nil {
		s.deps.Logger.Warn("failed to persist message", "session_id", msg.SessionID, "role", msg.Role, "err", err)
	}
}

func (s *Session) newMessage(role, content string) domain.Message {
	s.mu.Lock()
	id := s.record.ID
	s.mu.Unlock()
	return domain.Message{
		ID:        uuid.NewString(),
		SessionID: id,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

const bookingOpenedMessage = "Great! Let's find a time that suits you."

func (s *Session) welcomeMessage() string {
	if s.deps.Generator == nil {
		return "Hi! I'm your AI assistant. I'm running in offline mode right now, so I can take your contact details, " +
			"but for detailed questions please reach out " + s.contactLine() + "."
	}
	return "Hi! I'm your AI assistant. How can I help you today?"
}

func (s *Session) fallbackMessage() string {
	return "Sorry, I'm having trouble connecting right now. Please try again in a moment, or reach out " + s.contactLine() + "."
}

func (s *Session) contactLine() string {
	return s.deps.Contact.Reach()
}

// conversation returns the non-placeholder messages as chat turns.
func conversation(messages []domain.Message) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(messages)+1)
	for _, m := range messages {
		if m.IsLoading {
			continue
		}
		out = append(out, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func withoutPlaceholders(messages []domain.Message) []domain.Message {
	out := messages[:0]
	for _, m := range messages {
		if !m.IsLoading {
			out = append(out, m)
		}
	}
	return out
}

// deriveTitle keeps the first six words, cut to 50 characters plus "...".
func deriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	title := strings.Join(words, " ")
	if utf8.RuneCountInString(title) > titleMaxRunes {
		title = string([]rune(title)[:titleMaxRunes]) + "..."
	}
	return title
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
