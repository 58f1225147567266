package models

import (
	"time"

	"github.com/google/uuid"
)

// Clip is a materialized, time-bounded export of a tenant's long window.
// Frames are ordered oldest-first and owned by the requester; the relay
// retains nothing after export.
type Clip struct {
	TenantID uuid.UUID `json:"tenant_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Frames   []Frame   `json:"frames"`
	// Truncated is set when the requested range extends before the
	// oldest retained frame. Partial incident video is still a success,
	// but under-delivery must never be silent.
	Truncated bool `json:"truncated"`
	// OldestRetained is the timestamp of the oldest frame still held at
	// extraction time. Zero when the buffer was empty.
	OldestRetained time.Time `json:"oldest_retained,omitempty"`
}

// Empty returns true when the clip contains no frames.
func (c *Clip) Empty() bool {
	return len(c.Frames) == 0
}

// Duration returns the span actually covered by the clip's frames.
func (c *Clip) Duration() time.Duration {
	if len(c.Frames) == 0 {
		return 0
	}
	return c.Frames[len(c.Frames)-1].CapturedAt.Sub(c.Frames[0].CapturedAt)
}
