package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
	"sales-assistant/pkg/logging"
)

const correlationHeader = "X-Correlation-Id"

// ChatService runs one turn for a possibly new session and returns the
// session id the turn ran on.
type ChatService interface {
	Turn(ctx context.Context, sessionID, text string) (string, chat.Result, booking.View, error)
}

// Pruner is implemented by services that keep sessions in memory.
type Pruner interface {
	Prune(idle time.Duration) int
}

type Handler struct {
	svc    ChatService
	logger *logging.Logger
	idle   time.Duration
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID        string       `json:"sessionId"`
	Response         string       `json:"response"`
	HasBookingIntent bool         `json:"hasBookingIntent"`
	ServiceType      string       `json:"serviceType,omitempty"`
	SuggestedService string       `json:"suggestedService,omitempty"`
	LeadCaptured     *bool        `json:"leadCaptured,omitempty"`
	Booking          booking.View `json:"booking"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(svc ChatService, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	h := &Handler{svc: svc, logger: logging.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type Option func(*Handler)

func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSessionIdle drops sessions idle for longer than d after every turn
// when the service is a Pruner. Zero disables pruning.
func WithSessionIdle(d time.Duration) Option {
	return func(h *Handler) {
		h.idle = d
	}
}

// Handle serves POST /chat from API Gateway.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID)

	var in chatRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		logger.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: string(chat.ErrorInvalidInput)}), nil
	}

	sessionID, res, view, err := h.svc.Turn(ctx, strings.TrimSpace(in.SessionID), in.Message)
	h.prune(logger)
	if err != nil {
		code := chat.CodeOf(err)
		status := statusFor(code)
		if status >= http.StatusInternalServerError {
			logger.Error("chat turn failed", "session_id", sessionID, "err", err)
		} else {
			logger.Info("chat turn rejected", "session_id", sessionID, "code", code)
		}
		return respond(status, correlationID, errorResponse{Error: string(code)}), nil
	}

	logger.Info("chat turn completed",
		"session_id", sessionID,
		"booking_intent", res.HasBookingIntent,
		"lead_captured", res.LeadCaptured != nil && *res.LeadCaptured,
	)
	return respond(http.StatusOK, correlationID, chatResponse{
		SessionID:        sessionID,
		Response:         res.Response,
		HasBookingIntent: res.HasBookingIntent,
		ServiceType:      res.ServiceType,
		SuggestedService: res.SuggestedService,
		LeadCaptured:     res.LeadCaptured,
		Booking:          view,
	}), nil
}

func (h *Handler) prune(logger *logging.Logger) {
	p, ok := h.svc.(Pruner)
	if !ok || h.idle <= 0 {
		return
	}
	if n := p.Prune(h.idle); n > 0 {
		logger.Debug("pruned idle sessions", "removed", n)
	}
}

func statusFor(code chat.ErrorCode) int {
	switch code {
	case chat.ErrorInvalidInput:
		return http.StatusBadRequest
	case chat.ErrorTurnInProgress, chat.ErrorNotReady:
		return http.StatusConflict
	case chat.ErrorSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}

// headerValue looks key up case-insensitively; API Gateway does not
// normalise header names.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
