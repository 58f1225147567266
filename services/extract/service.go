package extract

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/internal/observability"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"go.uber.org/zap"
)

type clipSource interface {
	Extract(tenantID uuid.UUID, from, to time.Time) (*models.Clip, error)
	LongWindow() time.Duration
}

// Service materializes forensic clips from the long window.
type Service struct {
	buffer  clipSource
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewService creates an extraction service
func NewService(buffer clipSource, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

// ExtractIncident returns the clip covering the full long window ending
// at the alert time. This is the incident path: an alert fires and the
// pipeline pulls everything still retained leading up to it.
func (s *Service) ExtractIncident(ctx context.Context, tenantID uuid.UUID, alertAt time.Time) (*models.Clip, error) {
	return s.ExtractRange(ctx, tenantID, alertAt.Add(-s.buffer.LongWindow()), alertAt)
}

// ExtractRange returns the clip of frames captured in [from, to]. A
// range reaching past the retained horizon is served clipped with the
// truncation flagged, never silently shortened.
func (s *Service) ExtractRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*models.Clip, error) {
	if to.Before(from) {
		return nil, services.ErrInvalidInput.WithDetail("reason", "range end precedes start")
	}

	clip, err := s.buffer.Extract(tenantID, from, to)
	if err != nil {
		return nil, err
	}

	result := "complete"
	if clip.Truncated {
		result = "truncated"
	}
	s.metrics.ClipsExtracted.WithLabelValues(result).Inc()

	s.logger.Info("clip extracted",
		zap.String("tenant_id", tenantID.String()),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("frames", len(clip.Frames)),
		zap.Bool("truncated", clip.Truncated))
	return clip, nil
}
