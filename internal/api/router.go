// Package api provides the HTTP surface: the submission boundary, the
// diagnostic endpoints and the hosted session upgrade.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FlooooowY/SteelMount-FormShield/internal/config"
	"github.com/FlooooowY/SteelMount-FormShield/internal/monitoring"
	"github.com/FlooooowY/SteelMount-FormShield/internal/usecase"
)

// Dependencies are the collaborators of the router. Metrics and the session
// handlers are optional.
type Dependencies struct {
	Usecase      usecase.SubmissionUsecase
	Metrics      *monitoring.Metrics
	Sessions     http.Handler
	SessionStats http.HandlerFunc
	HealthChecks map[string]HealthCheckFunc
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	handler := NewHandler(deps.Usecase, cfg.Server.MaxBodyBytes, deps.HealthChecks)

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	if deps.Metrics != nil {
		r.Use(monitoring.NewMetricsMiddleware(deps.Metrics).HTTPMiddleware)
	}

	r.Get("/health", handler.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Security.RateLimit.Enabled {
			r.Use(RateLimitMiddleware(cfg.Security.RateLimit.RequestsPerMinute, deps.Metrics))
		}

		r.Get("/settings", handler.GetSettings)
		r.Post("/validate", handler.Validate)

		r.Group(func(r chi.Router) {
			r.Use(FormShield(deps.Usecase, cfg.Server.MaxBodyBytes))
			r.Post("/submit", handler.Submit)
		})
	})

	if deps.Sessions != nil {
		sessions := deps.Sessions
		if deps.Metrics != nil {
			sessions = monitoring.NewMetricsMiddleware(deps.Metrics).WebSocketMetricsInterceptor()(sessions)
		}
		r.Handle("/ws", sessions)
	}
	if deps.SessionStats != nil {
		r.Get("/ws/stats", deps.SessionStats)
	}

	return r
}
