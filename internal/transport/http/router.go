package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"atlasforum/internal/handler"
	"atlasforum/internal/logging"
	"atlasforum/internal/metrics"
	authmw "atlasforum/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	ProfileHandler *handler.ProfileHandler
	PostHandler    *handler.PostHandler
	VoteHandler    *handler.VoteHandler
	CommentHandler *handler.CommentHandler
	MetaHandler    *handler.MetaHandler

	HTTPMetrics *metrics.HTTPMetrics
	RateLimiter *authmw.IPRateLimiter
	Registry    *prometheus.Registry
	JWTSecret   string

	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(authmw.RequestLogger(logging.Component("http")))
	r.Use(middleware.Recoverer)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}

	r.Get("/health", cfg.MetaHandler.Health)
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Registry))
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Get("/levels", cfg.ProfileHandler.Levels)
		r.Get("/channels", cfg.MetaHandler.Channels)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/refresh", cfg.AuthHandler.Refresh)
			r.Post("/logout", cfg.AuthHandler.Logout)
			r.With(authmw.AuthMiddleware(cfg.JWTSecret)).Post("/logout-all", cfg.AuthHandler.LogoutAll)
		})

		// Public routes with optional authentication (my_vote on posts)
		r.Group(func(r chi.Router) {
			r.Use(authmw.OptionalAuthMiddleware(cfg.JWTSecret))

			r.Get("/posts", cfg.PostHandler.List)
			r.Get("/posts/{id}", cfg.PostHandler.Get)
			r.Get("/posts/{id}/comments", cfg.CommentHandler.List)
			r.Get("/profiles/{id}", cfg.ProfileHandler.Get)
		})

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

			r.Get("/me", cfg.ProfileHandler.Me)
			r.Patch("/me/profile", cfg.ProfileHandler.UpdateMe)

			r.Post("/posts", cfg.PostHandler.Create)
			r.Post("/posts/{id}/vote", cfg.VoteHandler.Cast)
			r.Post("/posts/{id}/comments", cfg.CommentHandler.Create)
		})
	})

	return r
}
