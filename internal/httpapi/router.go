package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
	"sales-assistant/internal/domain"
	"sales-assistant/pkg/logging"
)

const maxBodyBytes = 64 << 10

// ChatService is the session surface the API drives. *chat.Manager
// implements it.
type ChatService interface {
	Catalog() *booking.Catalog
	Offline() bool
	Open(ctx context.Context, sessionID string) (*chat.Session, error)
	Get(sessionID string) (*chat.Session, error)
	Modal(sessionID string) (*booking.Modal, error)
	Send(ctx context.Context, sessionID, text string) (chat.Result, booking.View, error)
}

// LeadAdmin lists and updates stored leads.
type LeadAdmin interface {
	List(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.LeadRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error
}

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Chat               ChatService
	Leads              LeadAdmin // nil disables the admin routes
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AdminJWTSecret     string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// NewRouter creates the chi router with all routes configured.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	h := &chatHandler{svc: cfg.Chat, logger: logger, origins: newOriginAllowlist(cfg.CORSAllowedOrigins)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(RequestLogger(logger))

	r.Get("/health", h.health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

		// Websocket upgrades must not pass through the compressing writer.
		api.Get("/sessions/{id}/ws", h.websocket)

		api.Group(func(g chi.Router) {
			g.Use(middleware.Compress(5))
			g.Get("/services", h.services)
			g.Post("/sessions", h.createSession)
			g.Get("/sessions/{id}/messages", h.messages)
			g.Post("/sessions/{id}/messages", h.sendMessage)
			g.Get("/sessions/{id}/booking", h.bookingView)
			g.Post("/sessions/{id}/booking/{action}", h.bookingAction)
		})
	})

	if cfg.Leads != nil {
		a := &adminHandler{leads: cfg.Leads, logger: logger}
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/leads", a.listLeads)
			admin.Patch("/leads/{id}", a.updateLead)
		})
	}

	return r
}
