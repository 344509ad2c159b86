package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/persona-dialogue/internal/middleware"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
)

// RouterConfig configures the observer API.
type RouterConfig struct {
	JWTSecret      string
	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string
}

// NewRouter builds the observer API. Routes under /api/v1 require a bearer
// token with the dialogue:read scope when JWTSecret is set.
func NewRouter(cfg RouterConfig, feed *Feed, personas *model.Registry, nats Checker, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(nats)
	conversationHandler := NewConversationHandler(feed, personas, log)
	turnHandler := NewTurnHandler(feed)
	streamHandler := NewStreamHandler(feed, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireScope(middleware.ScopeRead))
		}
		if cfg.RateLimit > 0 {
			window := cfg.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(middleware.RateLimit(cfg.RateLimit, window))
		}

		r.Route("/conversation", func(r chi.Router) {
			r.Get("/", conversationHandler.Get)
			r.Get("/turns", turnHandler.List)
			r.Get("/turns/{index}", turnHandler.Get)
			r.Get("/stream", streamHandler.Stream)
		})
	})

	return r
}
