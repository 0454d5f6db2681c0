package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hilvik/vivum-demo-v1/internal/middleware"
	"github.com/hilvik/vivum-demo-v1/internal/service"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

// RouterConfig holds what NewRouter needs to build the API.
type RouterConfig struct {
	Sessions          *service.SessionService
	Logger            *logger.Logger
	NATS              ConnectionChecker
	InviteCode        string
	JWTSecret         string
	TokenTTL          time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	activateHandler := NewActivateHandler(cfg.InviteCode, cfg.JWTSecret, cfg.TokenTTL, cfg.Logger)
	healthHandler := NewHealthHandler(cfg.NATS)
	sessionHandler := NewSessionHandler(cfg.Sessions, cfg.Logger)
	messageHandler := NewMessageHandler(cfg.Sessions, cfg.Logger)
	streamHandler := NewStreamHandler(cfg.Sessions, cfg.Logger, cfg.HeartbeatInterval)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/activate", activateHandler.Activate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.Create)
				r.Get("/", sessionHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Delete("/", sessionHandler.Delete)
					r.Post("/reset", sessionHandler.Reset)
					r.Post("/messages", messageHandler.Submit)
					r.Get("/stream", streamHandler.Stream)
				})
			})
		})
	})

	return r
}
