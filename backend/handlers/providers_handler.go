package handlers

import (
	"net/http"

	"github.com/radialtimeline/beats-gateway/backend/services/providers"
	"github.com/radialtimeline/beats-gateway/backend/services/templates"
	"github.com/radialtimeline/beats-gateway/backend/utils"
)

// ProvidersHandler exposes the provider and template catalogs
type ProvidersHandler struct {
	registry  *providers.Registry
	templates *templates.Registry
}

// NewProvidersHandler creates a new ProvidersHandler
func NewProvidersHandler(registry *providers.Registry, templateRegistry *templates.Registry) *ProvidersHandler {
	return &ProvidersHandler{
		registry:  registry,
		templates: templateRegistry,
	}
}

// HandleListProviders handles GET /api/v1/providers
func (h *ProvidersHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"providers": h.registry.ListProviders(),
	})
}

// HandleListModels handles GET /api/v1/providers/models
func (h *ProvidersHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]interface{}{
		"models": h.registry.AllModelInfo(),
	})
}

// HandleListTemplates handles GET /api/v1/templates
func (h *ProvidersHandler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	ids := h.templates.List()
	out := make([]*templates.Template, 0, len(ids))
	for _, id := range ids {
		if t, err := h.templates.Get(id); err == nil {
			out = append(out, t)
		}
	}
	_ = utils.WriteOK(w, map[string]interface{}{
		"templates": out,
	})
}
