package models

import (
	"time"

	"github.com/google/uuid"
)

// Frame is a single admitted video frame. Immutable once admitted:
// Payload is shared by reference between the long window, short-window
// snapshots, and clips, so no component may modify it after Write.
type Frame struct {
	TenantID uuid.UUID `json:"tenant_id"`
	// CapturedAt is the capture timestamp assigned at the edge
	// (source time, not relay processing time).
	CapturedAt time.Time `json:"captured_at"`
	// Sequence is the per-stream capture counter assigned by the edge
	// client. Together with CapturedAt it uniquely identifies a frame
	// within a tenant's stream.
	Sequence uint64 `json:"sequence"`
	Payload  []byte `json:"payload"`
}

// Age returns how far behind the given reference timestamp this frame is.
func (f *Frame) Age(ref time.Time) time.Duration {
	return ref.Sub(f.CapturedAt)
}
