package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/radialtimeline/beats-gateway/backend/services/audit"
	"github.com/radialtimeline/beats-gateway/backend/utils"
	"go.uber.org/zap"
)

// RecordsHandler exposes the audit trail of analysis requests
type RecordsHandler struct {
	store  audit.Store
	logger *zap.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(store audit.Store, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{
		store:  store,
		logger: logger,
	}
}

// HandleListRecords handles GET /api/v1/analysis/records
func (h *RecordsHandler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	records, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list analysis records", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// HandleGetRecord handles GET /api/v1/analysis/records/{id}
func (h *RecordsHandler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			_ = utils.WriteNotFound(w, "analysis record not found")
			return
		}
		h.logger.Error("failed to load analysis record", zap.String("id", id), zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, record)
}
