package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/services/providers"
	"github.com/radialtimeline/beats-gateway/backend/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	registry *providers.Registry
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(registry *providers.Registry, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - reports per-provider reachability. The service is
// ready when at least one provider answers.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	anyHealthy := false

	for _, name := range h.registry.ListProviders() {
		provider, err := h.registry.Provider(name)
		if err != nil {
			continue
		}
		if provider.Available(ctx) {
			checks[name] = "healthy"
			anyHealthy = true
		} else {
			h.logger.Warn("provider availability check failed", zap.String("provider", name))
			checks[name] = "unhealthy"
		}
	}

	response := HealthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if !anyHealthy {
		response.Status = "unhealthy"
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Status = "healthy"
	_ = utils.WriteOK(w, response)
}
