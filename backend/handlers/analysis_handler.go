package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/radialtimeline/beats-gateway/backend/services"
	"github.com/radialtimeline/beats-gateway/backend/services/analysis"
	"github.com/radialtimeline/beats-gateway/backend/utils"
	"go.uber.org/zap"
)

// AnalysisResponse is the tagged result envelope returned for analysis
// calls: exactly one of Content or Error is populated.
type AnalysisResponse struct {
	Success bool                  `json:"success"`
	Content *analysis.BeatsResult `json:"content,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// AnalysisHandler handles beat analysis HTTP requests
type AnalysisHandler struct {
	service *analysis.Service
	logger  *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(service *analysis.Service, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAnalyzeBeats handles POST /api/v1/analysis/beats
func (h *AnalysisHandler) HandleAnalyzeBeats(w http.ResponseWriter, r *http.Request) {
	var req analysis.BeatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid JSON body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		var valErr *utils.ValidationError
		if errors.As(err, &valErr) {
			_ = utils.WriteBadRequest(w, valErr.Message, valErr.Details())
			return
		}
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	result, err := h.service.AnalyzeBeats(r.Context(), &req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, AnalysisResponse{
		Success: true,
		Content: result,
	})
}

// writeDomainError maps domain error types onto HTTP status codes
func (h *AnalysisHandler) writeDomainError(w http.ResponseWriter, err error) {
	var domErr *services.DomainError
	if !errors.As(err, &domErr) {
		h.logger.Error("analysis failed", zap.Error(err))
		_ = utils.WriteJSON(w, http.StatusInternalServerError, AnalysisResponse{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Type {
	case services.ErrorTypeValidation:
		status = http.StatusBadRequest
	case services.ErrorTypeNotFound:
		status = http.StatusNotFound
	case services.ErrorTypeSafetyBlocked:
		status = http.StatusUnprocessableEntity
	case services.ErrorTypeProvider:
		status = http.StatusBadGateway
	}

	if status >= 500 {
		h.logger.Error("analysis failed", zap.Error(domErr))
	} else {
		h.logger.Warn("analysis rejected", zap.String("type", string(domErr.Type)), zap.Error(domErr))
	}

	_ = utils.WriteJSON(w, status, AnalysisResponse{
		Success: false,
		Error:   domErr.Message,
	})
}
