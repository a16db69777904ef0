package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// StatusForChatError maps a chat error code to an HTTP status.
func StatusForChatError(code chat.ErrorCode) int {
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

func writeChatError(w http.ResponseWriter, err error) {
	code := chat.CodeOf(err)
	msg := ""
	if code != chat.ErrorInternal {
		msg = err.Error()
	}
	writeError(w, StatusForChatError(code), string(code), msg)
}

func writeBookingError(w http.ResponseWriter, view booking.View, err error) {
	status := http.StatusConflict
	code := "INVALID_TRANSITION"
	if errors.Is(err, booking.ErrUnknownService) {
		status = http.StatusBadRequest
		code = "UNKNOWN_SERVICE"
	}
	writeJSON(w, status, struct {
		errorResponse
		Booking booking.View `json:"booking"`
	}{errorResponse{Error: code, Message: err.Error()}, view})
}

// decodeJSON decodes an optional JSON body; an empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
