package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/models"
)

// Event is one admitted frame handed to the analysis sink, stamped with
// the tenant it belongs to so the sink can partition per customer.
type Event struct {
	TenantID   uuid.UUID    `json:"tenant_id"`
	TenantName string       `json:"tenant_name"`
	Frame      models.Frame `json:"frame"`
}

// Sink delivers admitted frames to the analysis backend.
type Sink interface {
	Push(ctx context.Context, event Event) error
}

// HTTPSink posts events to a remote analysis endpoint as JSON.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink creates a sink posting to the configured URL
func NewHTTPSink(cfg config.SinkConfig) *HTTPSink {
	return &HTTPSink{
		url: cfg.URL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Push posts the event. Any non-2xx response is a delivery failure.
func (s *HTTPSink) Push(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding sink event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting sink event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink returned status %d", resp.StatusCode)
	}
	return nil
}

// NopSink discards events. Used when no sink URL is configured, so the
// relay still runs in buffer-only deployments.
type NopSink struct{}

func (NopSink) Push(context.Context, Event) error { return nil }

// pushTimeout bounds a single delivery attempt even when the worker
// context has no deadline.
const pushTimeout = 30 * time.Second
