package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/internal/observability"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/halcyonsec/camrelay/services/ratelimit"
	"github.com/halcyonsec/camrelay/services/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBuffer struct {
	written  []models.Frame
	writeErr error
	recent   []models.Frame
}

func (f *fakeBuffer) Write(tenantID uuid.UUID, frame models.Frame) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, frame)
	return nil
}

func (f *fakeBuffer) ReadShort(tenantID uuid.UUID) ([]models.Frame, error) {
	if f.recent == nil {
		return nil, services.ErrBufferNotFound
	}
	return f.recent, nil
}

type fakeLimiter struct {
	result ratelimit.Result
}

func (f *fakeLimiter) Record(tenantID uuid.UUID, now time.Time) ratelimit.Result {
	return f.result
}

type fakeForwarder struct {
	events []sink.Event
	full   bool
}

func (f *fakeForwarder) Enqueue(event sink.Event) bool {
	if f.full {
		return false
	}
	f.events = append(f.events, event)
	return true
}

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{MaxFrameBytes: 64, MaxFramesPerSecond: 30}
}

func testTenant() *models.Tenant {
	return &models.Tenant{ID: uuid.New(), Name: "dock-cams", Status: models.TenantActive}
}

func testSubmission() Submission {
	return Submission{
		CapturedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Sequence:   3,
		Payload:    []byte("jpeg"),
	}
}

func newTestService(buf *fakeBuffer, lim *fakeLimiter, fwd *fakeForwarder) *Service {
	return NewService(buf, lim, fwd, testLimits(), observability.NewTestMetrics(), zap.NewNop())
}

func TestIngestBuffersAndForwards(t *testing.T) {
	buf := &fakeBuffer{}
	fwd := &fakeForwarder{}
	svc := newTestService(buf, &fakeLimiter{result: ratelimit.Result{Allowed: true, Remaining: 29}}, fwd)

	tenant := testTenant()
	ack, err := svc.Ingest(context.Background(), tenant, testSubmission())
	require.NoError(t, err)

	assert.Equal(t, tenant.ID, ack.TenantID)
	assert.Equal(t, uint64(3), ack.Sequence)
	assert.True(t, ack.Forwarded)
	assert.Equal(t, 29, ack.Remaining)

	require.Len(t, buf.written, 1)
	assert.Equal(t, tenant.ID, buf.written[0].TenantID)

	require.Len(t, fwd.events, 1)
	assert.Equal(t, tenant.Name, fwd.events[0].TenantName)
}

func TestIngestRateCeilingWithholdsForwarding(t *testing.T) {
	buf := &fakeBuffer{}
	fwd := &fakeForwarder{}
	svc := newTestService(buf, &fakeLimiter{result: ratelimit.Result{Allowed: false}}, fwd)

	ack, err := svc.Ingest(context.Background(), testTenant(), testSubmission())
	require.NoError(t, err)

	// Over the ceiling the frame is still buffered, only the sink
	// hand-off is withheld.
	assert.False(t, ack.Forwarded)
	assert.Len(t, buf.written, 1)
	assert.Empty(t, fwd.events)
}

func TestIngestQueueFullReportedInAck(t *testing.T) {
	svc := newTestService(&fakeBuffer{}, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, &fakeForwarder{full: true})

	ack, err := svc.Ingest(context.Background(), testTenant(), testSubmission())
	require.NoError(t, err)
	assert.False(t, ack.Forwarded)
}

func TestIngestRejectsOversizedFrame(t *testing.T) {
	buf := &fakeBuffer{}
	svc := newTestService(buf, &fakeLimiter{}, &fakeForwarder{})

	sub := testSubmission()
	sub.Payload = make([]byte, 65)

	_, err := svc.Ingest(context.Background(), testTenant(), sub)
	assert.ErrorIs(t, err, services.ErrSizeExceeded)
	assert.Empty(t, buf.written)
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	svc := newTestService(&fakeBuffer{}, &fakeLimiter{}, &fakeForwarder{})

	sub := testSubmission()
	sub.Payload = nil

	_, err := svc.Ingest(context.Background(), testTenant(), sub)
	assert.ErrorIs(t, err, services.ErrEmptyPayload)
}

func TestIngestRejectsMissingTimestamp(t *testing.T) {
	svc := newTestService(&fakeBuffer{}, &fakeLimiter{}, &fakeForwarder{})

	sub := testSubmission()
	sub.CapturedAt = time.Time{}

	_, err := svc.Ingest(context.Background(), testTenant(), sub)
	assert.True(t, services.IsValidationError(err))
}

func TestIngestPropagatesBufferErrors(t *testing.T) {
	buf := &fakeBuffer{writeErr: services.ErrDuplicateFrame}
	fwd := &fakeForwarder{}
	svc := newTestService(buf, &fakeLimiter{result: ratelimit.Result{Allowed: true}}, fwd)

	_, err := svc.Ingest(context.Background(), testTenant(), testSubmission())
	assert.ErrorIs(t, err, services.ErrDuplicateFrame)
	assert.Empty(t, fwd.events)
}

func TestRecent(t *testing.T) {
	buf := &fakeBuffer{recent: []models.Frame{{Sequence: 1}, {Sequence: 2}}}
	svc := newTestService(buf, &fakeLimiter{}, &fakeForwarder{})

	frames, err := svc.Recent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, frames, 2)

	svc = newTestService(&fakeBuffer{}, &fakeLimiter{}, &fakeForwarder{})
	_, err = svc.Recent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, services.ErrBufferNotFound)
}
