package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
	"sales-assistant/internal/domain"
	"sales-assistant/pkg/logging"
)

type chatHandler struct {
	svc     ChatService
	logger  *logging.Logger
	origins originAllowlist
}

type sessionResponse struct {
	Session  domain.Session   `json:"session"`
	Status   chat.Status      `json:"status"`
	Offline  bool             `json:"offline"`
	Messages []domain.Message `json:"messages"`
	Booking  booking.View     `json:"booking"`
}

type sendRequest struct {
	Message string `json:"message"`
}

type sendResponse struct {
	SessionID string `json:"sessionId"`
	chat.Result
	Messages []domain.Message `json:"messages"`
	Booking  booking.View     `json:"booking"`
}

func (h *chatHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "offline": h.svc.Offline()})
}

func (h *chatHandler) services(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": h.svc.Catalog().All()})
}

func (h *chatHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(chat.ErrorInvalidInput), "invalid request body")
		return
	}
	s, err := h.svc.Open(r.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		writeChatError(w, err)
		return
	}
	view := booking.View{State: booking.StateClosed}
	if modal, err := h.svc.Modal(s.ID()); err == nil {
		view = modal.View()
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Session:  s.Record(),
		Status:   s.Status(),
		Offline:  h.svc.Offline(),
		Messages: s.Messages(),
		Booking:  view,
	})
}

func (h *chatHandler) messages(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": s.ID(), "messages": s.Messages()})
}

func (h *chatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(chat.ErrorInvalidInput), "invalid request body")
		return
	}
	res, view, err := h.svc.Send(r.Context(), id, req.Message)
	if err != nil {
		writeChatError(w, err)
		return
	}
	s, err := h.svc.Get(id)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{SessionID: id, Result: res, Messages: s.Messages(), Booking: view})
}

func (h *chatHandler) bookingView(w http.ResponseWriter, r *http.Request) {
	modal, err := h.svc.Modal(chi.URLParam(r, "id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modal.View())
}

type bookingRequest struct {
	ServiceID string `json:"serviceId"`
}

func (h *chatHandler) bookingAction(w http.ResponseWriter, r *http.Request) {
	modal, err := h.svc.Modal(chi.URLParam(r, "id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	var req bookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(chat.ErrorInvalidInput), "invalid request body")
		return
	}

	var view booking.View
	switch chi.URLParam(r, "action") {
	case "open":
		view = modal.Open(req.ServiceID)
	case "select":
		view, err = modal.Select(req.ServiceID)
	case "confirm":
		view, err = modal.Confirm()
	case "back":
		view, err = modal.Back()
	case "close":
		view = modal.Close()
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_ACTION", "unknown booking action")
		return
	}
	if err != nil {
		if !errors.Is(err, booking.ErrInvalidTransition) && !errors.Is(err, booking.ErrUnknownService) {
			h.logger.Error("booking transition failed", "err", err)
		}
		writeBookingError(w, view, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
