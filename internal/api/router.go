package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/api/middleware"
	"github.com/tandemhq/tandem/internal/auth"
	"github.com/tandemhq/tandem/internal/config"
	"github.com/tandemhq/tandem/internal/handlers"
	"github.com/tandemhq/tandem/internal/realtime"
	"github.com/tandemhq/tandem/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, socket *realtime.SocketServer, verifier *auth.TokenVerifier, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	})
	r.Use(limiter.Middleware)

	// CORS - browser clients connect from the web app's origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authmw := middleware.NewAuthMiddleware(verifier)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// The socket authenticates its own token after the upgrade so the
	// client gets a proper close frame instead of a 401 page.
	r.Get("/ws", socket.ServeWS)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Get("/presence/{tenantID}", h.Presence)
		r.Get("/history/{room}", h.History)

		r.Route("/tenants/{tenantID}/rules", func(r chi.Router) {
			r.Post("/", h.CreateRule)
			r.Get("/", h.ListRules)
			r.Get("/{ruleID}", h.GetRule)
			r.Put("/{ruleID}", h.UpdateRule)
			r.Delete("/{ruleID}", h.DeleteRule)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{notificationID}/read", h.MarkNotificationRead)
			r.Post("/{notificationID}/clear", h.ClearNotification)
		})

		r.Route("/internal/events", func(r chi.Router) {
			r.Post("/task", h.IngestTaskEvent)
			r.Post("/employee", h.IngestEmployeeEvent)
			r.Post("/message", h.IngestMessageEvent)
			r.Post("/comment", h.IngestCommentEvent)
		})
	})

	return r
}
