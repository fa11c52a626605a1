/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontend

ROUTE GROUPS:
  /api/members/*     Member directory and per-member views
  /api/ledger/*      Pairing-point postings
  /api/runs/*        Settlement run triggers and history
  /api/bonuses/*     Approval workflow
  /metrics           Prometheus scrape endpoint
  /healthz           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.RegisterMember)
			r.Get("/{id}", h.GetMember)
			r.Get("/{id}/entries", h.MemberEntries)
			r.Get("/{id}/bonuses", h.MemberBonuses)
			r.Get("/{id}/wallet", h.MemberWallet)
		})

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/credits", h.PostCredit)
		})

		// Run routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/daily", h.ListDailyRuns)
			r.Post("/daily", h.TriggerDaily)
			r.Get("/monthly", h.ListMonthlyRuns)
			r.Post("/monthly", h.TriggerMonthly)
		})

		// Approval workflow routes
		r.Route("/bonuses", func(r chi.Router) {
			r.Get("/", h.ListBonuses)
			r.Post("/{id}/approve", h.ApproveBonus)
			r.Post("/{id}/reject", h.RejectBonus)
			r.Post("/{id}/paid", h.MarkBonusPaid)
		})
	})

	// Operational endpoints
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
