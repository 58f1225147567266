package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/internal/observability"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/halcyonsec/camrelay/services/ratelimit"
	"github.com/halcyonsec/camrelay/services/sink"
	"go.uber.org/zap"
)

// Submission is a frame as presented by a camera, before admission.
type Submission struct {
	CapturedAt time.Time
	Sequence   uint64
	Payload    []byte
}

// Ack reports what happened to an admitted frame: it is always
// buffered, and forwarded to the sink only when the tenant is under
// its rate ceiling and the queue has room.
type Ack struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Sequence  uint64    `json:"sequence"`
	Forwarded bool      `json:"forwarded"`
	Remaining int       `json:"remaining"`
}

type frameBuffer interface {
	Write(tenantID uuid.UUID, frame models.Frame) error
	ReadShort(tenantID uuid.UUID) ([]models.Frame, error)
}

type limiter interface {
	Record(tenantID uuid.UUID, now time.Time) ratelimit.Result
}

type forwarder interface {
	Enqueue(event sink.Event) bool
}

// Service is the ingest pipeline: size check, buffer write, rate
// accounting, sink hand-off. Admission happens upstream in middleware;
// by the time a submission reaches this service the tenant is known.
type Service struct {
	buffer     frameBuffer
	rate       limiter
	dispatcher forwarder
	limits     config.LimitsConfig
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewService creates an ingest service
func NewService(buffer frameBuffer, rate limiter, dispatcher forwarder, limits config.LimitsConfig, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		buffer:     buffer,
		rate:       rate,
		dispatcher: dispatcher,
		limits:     limits,
		logger:     logger,
		metrics:    metrics,
	}
}

// Ingest admits one frame for the tenant. The frame size ceiling is a
// hard reject; the frame rate ceiling only withholds the sink hand-off,
// the frame is still buffered so extraction stays complete.
func (s *Service) Ingest(ctx context.Context, tenant *models.Tenant, sub Submission) (*Ack, error) {
	if len(sub.Payload) == 0 {
		s.metrics.FramesRejected.WithLabelValues("empty_payload").Inc()
		return nil, services.ErrEmptyPayload
	}
	if int64(len(sub.Payload)) > s.limits.MaxFrameBytes {
		s.metrics.FramesRejected.WithLabelValues("size_exceeded").Inc()
		return nil, services.ErrSizeExceeded.
			WithDetail("frame_bytes", len(sub.Payload)).
			WithDetail("max_bytes", s.limits.MaxFrameBytes)
	}
	if sub.CapturedAt.IsZero() {
		s.metrics.FramesRejected.WithLabelValues("missing_timestamp").Inc()
		return nil, services.ErrInvalidInput.WithDetail("field", "captured_at")
	}

	frame := models.Frame{
		TenantID:   tenant.ID,
		CapturedAt: sub.CapturedAt.UTC(),
		Sequence:   sub.Sequence,
		Payload:    sub.Payload,
	}

	if err := s.buffer.Write(tenant.ID, frame); err != nil {
		switch {
		case errors.Is(err, services.ErrStaleFrame):
			s.metrics.FramesRejected.WithLabelValues("stale").Inc()
		case errors.Is(err, services.ErrDuplicateFrame):
			s.metrics.FramesRejected.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}
	s.metrics.FramesAdmitted.WithLabelValues(tenant.ID.String()).Inc()

	ack := &Ack{TenantID: tenant.ID, Sequence: sub.Sequence}

	result := s.rate.Record(tenant.ID, time.Now())
	ack.Remaining = result.Remaining
	if !result.Allowed {
		s.metrics.SinkDropped.Inc()
		s.logger.Debug("rate ceiling reached, frame buffered but not forwarded",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Uint64("sequence", sub.Sequence))
		return ack, nil
	}

	ack.Forwarded = s.dispatcher.Enqueue(sink.Event{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Frame:      frame,
	})
	return ack, nil
}

// Recent returns a snapshot of the tenant's short window, oldest first.
func (s *Service) Recent(ctx context.Context, tenantID uuid.UUID) ([]models.Frame, error) {
	frames, err := s.buffer.ReadShort(tenantID)
	if err != nil {
		return nil, err
	}
	return frames, nil
}
