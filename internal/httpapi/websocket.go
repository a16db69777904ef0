package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
	"sales-assistant/internal/domain"
)

const (
	wsReadLimit    = 16 << 10
	wsWriteTimeout = 10 * time.Second
)

type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wsOutbound struct {
	Type     string           `json:"type"`
	Session  *domain.Session  `json:"session,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
	Result   *chat.Result     `json:"result,omitempty"`
	Booking  *booking.View    `json:"booking,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// websocket serves one chat session over a socket. Each inbound message is
// answered with a typing frame and then a reply or error frame.
func (h *chatHandler) websocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.origins.empty() || h.origins.allows(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	ctx := r.Context()
	s, err := h.svc.Open(ctx, chi.URLParam(r, "id"))
	if err != nil {
		_ = h.writeFrame(conn, wsOutbound{Type: "error", Error: string(chat.CodeOf(err))})
		return
	}
	id := s.ID()
	record := s.Record()
	if err := h.writeFrame(conn, wsOutbound{Type: "session", Session: &record, Messages: s.Messages()}); err != nil {
		return
	}

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "session_id", id, "err", err)
			}
			return
		}
		if strings.ToLower(in.Type) != "message" {
			if err := h.writeFrame(conn, wsOutbound{Type: "error", Error: "UNKNOWN_TYPE"}); err != nil {
				return
			}
			continue
		}
		if err := h.writeFrame(conn, wsOutbound{Type: "typing"}); err != nil {
			return
		}

		res, view, err := h.svc.Send(ctx, id, in.Text)
		out := wsOutbound{Type: "reply", Result: &res, Booking: &view}
		if err != nil {
			out = wsOutbound{Type: "error", Error: string(chat.CodeOf(err))}
		}
		if err := h.writeFrame(conn, out); err != nil {
			return
		}
	}
}

func (h *chatHandler) writeFrame(conn *websocket.Conn, v wsOutbound) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
