package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/credkeeper/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves
// the credkeeper API.
//
// Routes:
//
//	POST /api/register   → authHandler.Register
//	POST /api/login      → authHandler.Login
//	GET  /healthz        → healthHandler.Health (omitted if healthHandler is nil)
//
// Middleware chain (applied in order):
//  1. RequestID: tags each request
//  2. WithRequestLogging(logger): logs incoming requests
//  3. Recoverer: turns panics into 500
//  4. AllowContentType("application/json"): /api group only
func NewRouter(
	authHandler *AuthHandler,
	healthHandler *HealthHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	if healthHandler != nil {
		r.Get("/healthz", healthHandler.Health)
	}

	r.Route("/api", func(r chi.Router) {
		// Only allow requests with Content-Type: application/json
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	return r
}
