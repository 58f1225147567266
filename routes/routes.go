package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/halcyonsec/camrelay/app"
	"github.com/halcyonsec/camrelay/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Admin-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ingestHandler := handlers.NewIngestHandler(deps.Ingest, deps.Config.Limits, deps.Logger)
	clipHandler := handlers.NewClipHandler(deps.Extract, deps.Logger)
	adminHandler := handlers.NewAdminHandler(deps.Credentials, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Dispatcher, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Camera traffic (tenant key required)
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireTenant)
			r.Post("/frames", ingestHandler.SubmitFrame)
			r.Get("/frames/recent", ingestHandler.RecentFrames)
			r.Get("/clips", clipHandler.ExtractRange)
			r.Post("/clips/incident", clipHandler.ExtractIncident)
		})

		// Tenant provisioning (admin key required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/tenants", adminHandler.ListTenants)
			r.Post("/tenants", adminHandler.CreateTenant)
			r.Post("/tenants/{id}/revoke", adminHandler.RevokeTenant)
			r.Post("/tenants/{id}/reactivate", adminHandler.ReactivateTenant)
			// Forensic export survives revocation; only admission does not.
			r.Get("/tenants/{id}/clips", clipHandler.AdminExtractRange)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
