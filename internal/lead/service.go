package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/metrics"
	"sales-assistant/pkg/logging"
)

// Deliverer fans a lead out to its sinks.
type Deliverer interface {
	Dispatch(ctx context.Context, lead domain.LeadData) []Outcome
}

// Contact is the human fallback channel offered when automation fails.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Reach completes "reach out ..." with whichever channels are configured.
func (c Contact) Reach() string {
	name := c.Name
	if name == "" {
		name = "us"
	}
	switch {
	case c.Email != "" && c.Phone != "":
		return fmt.Sprintf("to %s directly at %s or %s", name, c.Email, c.Phone)
	case c.Email != "":
		return fmt.Sprintf("to %s directly at %s", name, c.Email)
	case c.Phone != "":
		return fmt.Sprintf("to %s directly at %s", name, c.Phone)
	default:
		return "to us through the contact page"
	}
}

// Result is the outcome of running one user message through lead capture.
type Result struct {
	HasContactIntent bool
	LeadCaptured     bool
	Email            string
	Phone            string
	Response         string
	// SinkResponse is the representative confirmation text from the sinks.
	SinkResponse string
	Delivered    bool
}

type Service struct {
	deliverer Deliverer
	contact   Contact
	logger    *logging.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

func NewService(d Deliverer, contact Contact, logger *logging.Logger, m *metrics.Collector) (*Service, error) {
	if d == nil {
		return nil, errors.New("lead: deliverer must not be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		deliverer: d,
		contact:   contact,
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// HasContactIntent reports whether text would be handled by lead capture.
func (s *Service) HasContactIntent(text string) bool {
	return DetectContactIntent(text)
}

// ProcessMessage detects contact intent in text and, when contact details are
// present, captures them as a lead. Delivery failures only change the wording
// of the response.
func (s *Service) ProcessMessage(ctx context.Context, text, sessionID string) Result {
	if !DetectContactIntent(text) {
		return Result{}
	}

	email := ExtractEmail(text)
	phone := ExtractPhone(text)
	if email == "" && phone == "" {
		return Result{
			HasContactIntent: true,
			Response:         askForContactMessage,
		}
	}

	lead := domain.LeadData{
		ID:        newLeadID(),
		Email:     email,
		Phone:     phone,
		Context:   text,
		Source:    domain.LeadSourceChat,
		SessionID: sessionID,
		Timestamp: s.now(),
	}
	outcomes := s.deliverer.Dispatch(ctx, lead)
	delivered := Succeeded(outcomes)
	s.metrics.ObserveLeadCapture(delivered)
	if !delivered {
		s.logger.Warn("lead captured without delivery", "lead_id", lead.ID, "session_id", sessionID, "sinks", len(outcomes))
	}

	return Result{
		HasContactIntent: true,
		LeadCaptured:     true,
		Email:            email,
		Phone:            phone,
		Response:         s.confirmationMessage(email, phone, delivered),
		SinkResponse:     RepresentativeResponse(outcomes),
		Delivered:        delivered,
	}
}

const askForContactMessage = "Absolutely, I'd be happy to help! Could you share your email address or phone number " +
	"so we can reach out as soon as possible about a free consultation?"

func (s *Service) confirmationMessage(email, phone string, delivered bool) string {
	var b strings.Builder
	b.WriteString("Thank you! ")
	switch {
	case email != "" && phone != "":
		fmt.Fprintf(&b, "We've sent a confirmation to %s and noted your phone number %s. ", email, phone)
	case email != "":
		fmt.Fprintf(&b, "We've sent a confirmation to %s. ", email)
	default:
		fmt.Fprintf(&b, "We've noted your phone number %s. ", phone)
	}
	if email != "" {
		b.WriteString("Please check your inbox for more details. ")
	}
	if !delivered {
		fmt.Fprintf(&b, "You can also reach out %s. ", s.contact.Reach())
	}
	b.WriteString("Would you like to hear more about our services while you wait?")
	return b.String()
}

var newLeadID = func() string {
	return uuid.NewString()
}
