package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/middleware"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/utils"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// IncidentRequest represents an incident clip extraction request
type IncidentRequest struct {
	AlertAt time.Time `json:"alert_at" validate:"required"`
}

// ExtractService defines the interface for clip extraction
type ExtractService interface {
	ExtractIncident(ctx context.Context, tenantID uuid.UUID, alertAt time.Time) (*models.Clip, error)
	ExtractRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*models.Clip, error)
}

// ClipHandler handles clip extraction from the long window
type ClipHandler struct {
	service ExtractService
	logger  *zap.Logger
}

// NewClipHandler creates a new ClipHandler
func NewClipHandler(service ExtractService, logger *zap.Logger) *ClipHandler {
	return &ClipHandler{
		service: service,
		logger:  logger,
	}
}

// ExtractIncident handles POST /api/v1/clips/incident
func (h *ClipHandler) ExtractIncident(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req IncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	clip, err := h.service.ExtractIncident(r.Context(), tenant.ID, req.AlertAt)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeClip(w, r, clip)
}

// ExtractRange handles GET /api/v1/clips?from=&to=
func (h *ClipHandler) ExtractRange(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "from must be an RFC 3339 timestamp", nil)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "to must be an RFC 3339 timestamp", nil)
		return
	}

	clip, err := h.service.ExtractRange(r.Context(), tenant.ID, from, to)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeClip(w, r, clip)
}

// AdminExtractRange handles GET /api/v1/admin/tenants/{id}/clips?from=&to=
// The admin surface reaches buffers regardless of tenant status, so
// incident video survives a key revocation.
func (h *ClipHandler) AdminExtractRange(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "id must be a valid UUID", nil)
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "from must be an RFC 3339 timestamp", nil)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "to must be an RFC 3339 timestamp", nil)
		return
	}

	clip, err := h.service.ExtractRange(r.Context(), tenantID, from, to)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeClip(w, r, clip)
}

// writeClip serializes a clip, gzip-compressed when the client accepts
// it. Clips carry raw frame payloads, so compression matters here in a
// way it does not for the control responses.
func (h *ClipHandler) writeClip(w http.ResponseWriter, r *http.Request, clip *models.Clip) {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		_ = utils.WriteOK(w, clip)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if err := json.NewEncoder(gz).Encode(utils.SuccessResponse{Data: clip}); err != nil {
		h.logger.Error("failed to write clip response", zap.Error(err))
	}
}
