package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExtractService struct {
	clip       *models.Clip
	err        error
	gotAlertAt time.Time
	gotFrom    time.Time
	gotTo      time.Time
}

func (f *fakeExtractService) ExtractIncident(ctx context.Context, tenantID uuid.UUID, alertAt time.Time) (*models.Clip, error) {
	f.gotAlertAt = alertAt
	if f.err != nil {
		return nil, f.err
	}
	return f.clip, nil
}

func (f *fakeExtractService) ExtractRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*models.Clip, error) {
	f.gotFrom, f.gotTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.clip, nil
}

func TestExtractIncident(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New()}
	alertAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc := &fakeExtractService{clip: &models.Clip{
		TenantID: tenant.ID,
		Frames:   []models.Frame{{Sequence: 9}},
	}}
	h := NewClipHandler(svc, zap.NewNop())

	body, err := json.Marshal(IncidentRequest{AlertAt: alertAt})
	require.NoError(t, err)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/clips/incident", bytes.NewBuffer(body)), tenant)
	rec := httptest.NewRecorder()
	h.ExtractIncident(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alertAt, svc.gotAlertAt)

	var resp struct {
		Data models.Clip `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Frames, 1)
}

func TestExtractIncidentMissingAlertTime(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New()}
	h := NewClipHandler(&fakeExtractService{}, zap.NewNop())

	req := withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/clips/incident", bytes.NewBufferString(`{}`)), tenant)
	rec := httptest.NewRecorder()
	h.ExtractIncident(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractRange(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New()}
	svc := &fakeExtractService{clip: &models.Clip{Truncated: true}}
	h := NewClipHandler(svc, zap.NewNop())

	url := "/api/v1/clips?from=2026-03-14T11:58:00Z&to=2026-03-14T12:00:00Z"
	req := withTenant(httptest.NewRequest(http.MethodGet, url, nil), tenant)
	rec := httptest.NewRecorder()
	h.ExtractRange(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 58, 0, 0, time.UTC), svc.gotFrom)

	var resp struct {
		Data models.Clip `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Truncated)
}

func TestExtractRangeBadTimestamps(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New()}
	h := NewClipHandler(&fakeExtractService{}, zap.NewNop())

	for _, url := range []string{
		"/api/v1/clips",
		"/api/v1/clips?from=yesterday&to=2026-03-14T12:00:00Z",
		"/api/v1/clips?from=2026-03-14T11:58:00Z&to=noon",
	} {
		req := withTenant(httptest.NewRequest(http.MethodGet, url, nil), tenant)
		rec := httptest.NewRecorder()
		h.ExtractRange(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
	}
}

func TestExtractRangeUnknownTenant(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New()}
	h := NewClipHandler(&fakeExtractService{err: services.ErrBufferNotFound}, zap.NewNop())

	url := "/api/v1/clips?from=2026-03-14T11:58:00Z&to=2026-03-14T12:00:00Z"
	req := withTenant(httptest.NewRequest(http.MethodGet, url, nil), tenant)
	rec := httptest.NewRecorder()
	h.ExtractRange(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminExtractRange(t *testing.T) {
	tenantID := uuid.New()
	svc := &fakeExtractService{clip: &models.Clip{TenantID: tenantID}}
	h := NewClipHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/api/v1/admin/tenants/{id}/clips", h.AdminExtractRange)

	url := "/api/v1/admin/tenants/" + tenantID.String() + "/clips?from=2026-03-14T11:58:00Z&to=2026-03-14T12:00:00Z"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/tenants/nope/clips?from=2026-03-14T11:58:00Z&to=2026-03-14T12:00:00Z", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractIncidentGzipResponse(t *testing.T) {
	tenant := &models.Tenant{ID: uuid.New()}
	svc := &fakeExtractService{clip: &models.Clip{
		TenantID: tenant.ID,
		Frames:   []models.Frame{{Sequence: 3, Payload: []byte("jpeg")}},
	}}
	h := NewClipHandler(svc, zap.NewNop())

	body, err := json.Marshal(IncidentRequest{AlertAt: time.Now().UTC()})
	require.NoError(t, err)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/api/v1/clips/incident", bytes.NewBuffer(body)), tenant)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ExtractIncident(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(gr)
	require.NoError(t, err)

	var resp struct {
		Data models.Clip `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Len(t, resp.Data.Frames, 1)
}
