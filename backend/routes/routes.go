package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/radialtimeline/beats-gateway/backend/app"
	"github.com/radialtimeline/beats-gateway/backend/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS middleware; Obsidian plugin clients send requests from an
	// app:// origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "app://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.Registry, deps.Logger)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analysis, deps.Logger)
	providersHandler := handlers.NewProvidersHandler(deps.Registry, deps.Templates)
	recordsHandler := handlers.NewRecordsHandler(deps.Audit.Store(), deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/analysis", func(r chi.Router) {
			r.Post("/beats", analysisHandler.HandleAnalyzeBeats)
			r.Get("/records", recordsHandler.HandleListRecords)
			r.Get("/records/{id}", recordsHandler.HandleGetRecord)
		})

		r.Get("/providers", providersHandler.HandleListProviders)
		r.Get("/providers/models", providersHandler.HandleListModels)
		r.Get("/templates", providersHandler.HandleListTemplates)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
