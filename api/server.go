/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the HTTP router (chi), middleware stack, and route definitions.
	This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. RequestID:     Unique ID per request for tracing
 2. RealIP:        Client address from X-Forwarded-For / X-Real-IP
 3. RequestLogger: Request-scoped slog logger + one line per request
 4. Recoverer:     Panic recovery (500 instead of crash)
 5. CORS:          Cross-origin requests for the dashboard

ROUTE GROUPS:

	/api/admin/*       Batch trigger, run history, schedule
	/api/reminders/*   Reminder listing and handling
	/api/reports/*     Health score, ranking, trends
	/api/scenarios/*   Demo scenarios
	/healthz           Liveness + datastore ping

SECURITY NOTE:

	No authentication middleware. The engine is deployed behind the CRUD
	service's gateway, which owns sessions and roles.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/liaison-engine/config"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsCfg config.CORSConfig, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsCfg.Origins(),
		AllowedMethods: corsCfg.Methods(),
		AllowedHeaders: corsCfg.Headers(),
		MaxAge:         corsCfg.MaxAge,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/runs", h.TriggerRun)
			r.Get("/runs", h.ListRuns)
			r.Get("/schedule", h.GetSchedule)
		})

		// Reminder routes
		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", h.ListReminders)
			r.Post("/{id}/handle", h.HandleReminder)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/health-score", h.GetHealthScore)
			r.Get("/ranking", h.GetRanking)
			r.Get("/trends", h.GetTrends)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
