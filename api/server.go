/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request
  2. RealIP:     Client IP behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Tracing:    OpenTelemetry server spans
  6. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /health        Liveness probe, no auth
  /api/*         Everything else, behind RequirePrincipal

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go:     Principal resolution middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Tracing())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Role"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	// API routes, all behind principal resolution
	r.Route("/api", func(r chi.Router) {
		r.Use(RequirePrincipal)

		// Approval routes
		r.Route("/approvals", func(r chi.Router) {
			r.Post("/", h.SubmitClaim)
			r.Get("/", h.ListMyApprovals)
			r.Get("/pending", h.ListPendingApprovals)
			r.Post("/complete-batch", h.BulkCompleteClaims)
			r.Post("/{id}/approve", h.ApproveClaim)
			r.Post("/{id}/reject", h.RejectClaim)
			r.Post("/{id}/complete", h.CompleteClaim)
			r.Delete("/{id}", h.DeleteRejectedClaim)
		})

		// Trip routes
		r.Route("/trips", func(r chi.Router) {
			r.Post("/", h.LogTrip)
			r.Get("/", h.ListMyTrips)
		})

		// Stamp routes
		r.Route("/stamps", func(r chi.Router) {
			r.Post("/", h.ClaimStamp)
			r.Get("/", h.ListMyStamps)
			r.Get("/progress", h.StampProgress)
		})

		// Grade
		r.Get("/grade", h.GetGrade)

		// Coupon routes
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", h.ListMyCoupons)
			r.Post("/welcome", h.WelcomeCoupon)
			r.Post("/{id}/redeem", h.RedeemCoupon)
		})

		// Region reference data
		r.Get("/regions", h.ListRegions)
	})

	return r
}
