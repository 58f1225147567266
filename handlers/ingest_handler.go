package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/middleware"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services/ingest"
	"github.com/halcyonsec/camrelay/utils"
	"go.uber.org/zap"
)

// FrameRequest represents a frame submission from an edge camera
type FrameRequest struct {
	CapturedAt time.Time `json:"captured_at" validate:"required"`
	Sequence   uint64    `json:"sequence"`
	Payload    []byte    `json:"payload" validate:"required"`
}

// FrameAck represents the admission outcome returned to the camera
type FrameAck struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Sequence  uint64    `json:"sequence"`
	Forwarded bool      `json:"forwarded"`
	Remaining int       `json:"remaining"`
}

// RecentFramesResponse represents the short-window snapshot
type RecentFramesResponse struct {
	TenantID uuid.UUID      `json:"tenant_id"`
	Count    int            `json:"count"`
	Frames   []models.Frame `json:"frames"`
}

// IngestService defines the interface for frame admission
type IngestService interface {
	Ingest(ctx context.Context, tenant *models.Tenant, sub ingest.Submission) (*ingest.Ack, error)
	Recent(ctx context.Context, tenantID uuid.UUID) ([]models.Frame, error)
}

// IngestHandler handles frame submission and short-window reads
type IngestHandler struct {
	service IngestService
	limits  config.LimitsConfig
	logger  *zap.Logger
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(service IngestService, limits config.LimitsConfig, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		service: service,
		limits:  limits,
		logger:  logger,
	}
}

// SubmitFrame handles POST /api/v1/frames
func (h *IngestHandler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	// The body limit covers the payload ceiling plus base64 expansion
	// and envelope fields, so an oversized frame is cut off before it
	// is read into memory.
	bodyLimit := h.limits.MaxFrameBytes + h.limits.MaxFrameBytes/3 + 4096
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			_ = utils.WritePayloadTooLarge(w, "frame exceeds size ceiling", map[string]interface{}{
				"max_bytes": h.limits.MaxFrameBytes,
			})
			return
		}
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ack, err := h.service.Ingest(r.Context(), tenant, ingest.Submission{
		CapturedAt: req.CapturedAt,
		Sequence:   req.Sequence,
		Payload:    req.Payload,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteAccepted(w, FrameAck{
		TenantID:  ack.TenantID,
		Sequence:  ack.Sequence,
		Forwarded: ack.Forwarded,
		Remaining: ack.Remaining,
	})
}

// RecentFrames handles GET /api/v1/frames/recent
func (h *IngestHandler) RecentFrames(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	frames, err := h.service.Recent(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, RecentFramesResponse{
		TenantID: tenant.ID,
		Count:    len(frames),
		Frames:   frames,
	})
}
