package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
	"sales-assistant/internal/domain"
	"sales-assistant/internal/lead"
	"sales-assistant/internal/repository"
	"sales-assistant/pkg/logging"
)

type fixedGenerator struct {
	reply string
}

func (g fixedGenerator) Generate(context.Context, []domain.ChatMessage) (string, error) {
	return g.reply, nil
}

type fakeLeads struct{}

func (fakeLeads) HasContactIntent(text string) bool { return lead.DetectContactIntent(text) }

func (fakeLeads) ProcessMessage(_ context.Context, text, _ string) lead.Result {
	return lead.Result{HasContactIntent: true, LeadCaptured: true, Response: "Thanks, we will be in touch."}
}

type fakeLeadAdmin struct {
	leads     []domain.LeadRecord
	updated   map[string]domain.LeadStatus
	updateErr error
}

func (f *fakeLeadAdmin) List(_ context.Context, status domain.LeadStatus, _ int) ([]domain.LeadRecord, error) {
	var out []domain.LeadRecord
	for _, l := range f.leads {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeadAdmin) UpdateStatus(_ context.Context, id string, status domain.LeadStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = map[string]domain.LeadStatus{}
	}
	f.updated[id] = status
	return nil
}

const testSecret = "admin-secret"

func newTestRouter(t *testing.T, reply string, admin LeadAdmin) http.Handler {
	t.Helper()
	m, err := chat.NewManager(chat.Deps{
		Leads:     fakeLeads{},
		Generator: fixedGenerator{reply: reply},
		Logger:    logging.Discard(),
	}, nil)
	require.NoError(t, err)
	return NewRouter(Config{
		Logger:             logging.Discard(),
		Chat:               m,
		Leads:              admin,
		CORSAllowedOrigins: []string{"https://axiestudio.se"},
		AdminJWTSecret:     testSecret,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createSession(t *testing.T, h http.Handler) sessionResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[sessionResponse](t, rec)
}

func TestHealthAndServices(t *testing.T) {
	h := newTestRouter(t, "ok", nil)

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(t, h, http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode[struct {
		Services []booking.Service `json:"services"`
	}](t, rec)
	require.Len(t, services.Services, 5)
}

func TestCreateSession_StartsWithWelcome(t *testing.T) {
	h := newTestRouter(t, "ok", nil)

	resp := createSession(t, h)
	require.Equal(t, chat.StatusReady, resp.Status)
	require.NotEmpty(t, resp.Session.ID)
	require.Len(t, resp.Messages, 1)
	require.Equal(t, domain.RoleAssistant, resp.Messages[0].Role)
	require.Equal(t, booking.StateClosed, resp.Booking.State)

	again := do(t, h, http.MethodPost, "/api/sessions", `{"sessionId":"`+resp.Session.ID+`"}`)
	require.Equal(t, http.StatusOK, again.Code)
	require.Equal(t, resp.Session.ID, decode[sessionResponse](t, again).Session.ID)
}

func TestSendMessage_OpensBookingOnConfirmedService(t *testing.T) {
	h := newTestRouter(t, "Great choice! BOOKING_CONFIRMED:website", nil)
	id := createSession(t, h).Session.ID

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"I want a website"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[sendResponse](t, rec)
	require.Equal(t, id, resp.SessionID)
	require.True(t, resp.HasBookingIntent)
	require.Equal(t, "website", resp.ServiceType)
	require.NotContains(t, resp.Response, "BOOKING_CONFIRMED")
	require.Equal(t, booking.StateConfirmation, resp.Booking.State)
	require.Len(t, resp.Messages, 3)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+id+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[struct {
		Messages []domain.Message `json:"messages"`
	}](t, rec).Messages, 3)
}

func TestSendMessage_ContactDetailsCaptureLead(t *testing.T) {
	h := newTestRouter(t, "ok", nil)
	id := createSession(t, h).Session.ID

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"kontakta mig på anna@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[sendResponse](t, rec)
	require.NotNil(t, resp.LeadCaptured)
	require.True(t, *resp.LeadCaptured)
}

func TestSendMessage_Errors(t *testing.T) {
	h := newTestRouter(t, "ok", nil)
	id := createSession(t, h).Session.ID

	rec := do(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", `{"message":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_INPUT", decode[errorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sessions/missing/messages", `{"message":"hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "SESSION_NOT_FOUND", decode[errorResponse](t, rec).Error)
}

func TestBookingFlow(t *testing.T) {
	h := newTestRouter(t, "ok", nil)
	id := createSession(t, h).Session.ID
	base := "/api/sessions/" + id + "/booking"

	rec := do(t, h, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[booking.View](t, rec)
	require.Equal(t, booking.StateServiceSelection, view.State)
	require.Len(t, view.Services, 5)

	rec = do(t, h, http.MethodPost, base+"/select", `{"serviceId":"spaceship"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/select", `{"serviceId":"website"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, booking.StateConfirmation, decode[booking.View](t, rec).State)

	rec = do(t, h, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[booking.View](t, rec)
	require.Equal(t, booking.StateCalendarView, view.State)
	require.NotEmpty(t, view.CalendarURL)

	rec = do(t, h, http.MethodGet, base, "")
	require.Equal(t, booking.StateCalendarView, decode[booking.View](t, rec).State)

	rec = do(t, h, http.MethodPost, base+"/close", "")
	require.Equal(t, booking.StateClosed, decode[booking.View](t, rec).State)

	rec = do(t, h, http.MethodPost, base+"/teleport", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func adminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doAdmin(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminLeads(t *testing.T) {
	admin := &fakeLeadAdmin{leads: []domain.LeadRecord{
		{ID: "a", Email: "a@example.com", Status: domain.LeadStatusNew},
		{ID: "b", Phone: "0701234567", Status: domain.LeadStatusContacted},
	}}
	h := newTestRouter(t, "ok", admin)
	token := adminToken(t, testSecret)

	rec := doAdmin(t, h, http.MethodGet, "/admin/leads", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doAdmin(t, h, http.MethodGet, "/admin/leads", "", adminToken(t, "wrong"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doAdmin(t, h, http.MethodGet, "/admin/leads?status=new", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Leads []domain.LeadRecord `json:"leads"`
	}](t, rec)
	require.Len(t, list.Leads, 1)
	require.Equal(t, "a", list.Leads[0].ID)

	rec = doAdmin(t, h, http.MethodGet, "/admin/leads?status=archived", "", token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAdmin(t, h, http.MethodPatch, "/admin/leads/a", `{"status":"converted"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.LeadStatusConverted, admin.updated["a"])

	rec = doAdmin(t, h, http.MethodPatch, "/admin/leads/a", `{"status":"bogus"}`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	admin.updateErr = repository.ErrLeadNotFound
	rec = doAdmin(t, h, http.MethodPatch, "/admin/leads/zzz", `{"status":"contacted"}`, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesAbsentWithoutStore(t *testing.T) {
	h := newTestRouter(t, "ok", nil)
	rec := doAdmin(t, h, http.MethodGet, "/admin/leads", "", adminToken(t, testSecret))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, "ok", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://axiestudio.se")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://axiestudio.se", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow("1.1.1.1"))
	require.True(t, rl.Allow("1.1.1.1"))
	require.False(t, rl.Allow("1.1.1.1"))
	require.True(t, rl.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	require.True(t, rl.Allow("1.1.1.1"))

	now = now.Add(limiterIdleTTL + time.Minute)
	rl.Allow("3.3.3.3")
	require.Len(t, rl.clients, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestStatusForChatError(t *testing.T) {
	cases := map[chat.ErrorCode]int{
		chat.ErrorInvalidInput:    http.StatusBadRequest,
		chat.ErrorTurnInProgress:  http.StatusConflict,
		chat.ErrorNotReady:        http.StatusConflict,
		chat.ErrorSessionNotFound: http.StatusNotFound,
		chat.ErrorInternal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusForChatError(code), code)
	}
}

func TestWebsocketChat(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, "Happy to help! BOOKING_CONFIRMED:onboarding", nil))
	t.Cleanup(srv.Close)

	id := uuid.NewString()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var frame wsOutbound
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "session", frame.Type)
	require.Equal(t, id, frame.Session.ID)
	require.Len(t, frame.Messages, 1)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "message", Text: "Tell me about onboarding"}))

	frame = wsOutbound{}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "typing", frame.Type)

	frame = wsOutbound{}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "reply", frame.Type)
	require.NotNil(t, frame.Result)
	require.True(t, frame.Result.HasBookingIntent)
	require.Equal(t, booking.StateConfirmation, frame.Booking.State)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "message", Text: " "}))
	frame = wsOutbound{}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "typing", frame.Type)
	frame = wsOutbound{}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "error", frame.Type)
	require.Equal(t, "INVALID_INPUT", frame.Error)
}
