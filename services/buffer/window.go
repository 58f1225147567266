package buffer

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
)

// tenantBuffer holds one tenant's dual-horizon state. The frames slice
// is the canonical long window, ordered by capture timestamp; the short
// window is an index into it (shortStart), so payloads are stored once
// and shared by reference.
//
// Locking: exactly one writer at a time per tenant (ingest is
// serialized upstream per tenant connection), many concurrent readers.
// All operations are in-memory and perform no I/O under the lock.
type tenantBuffer struct {
	mu         sync.RWMutex
	frames     []models.Frame
	shortStart int
	bytes      int64
	lastWrite  time.Time // wall clock, drives idle retention only
}

// write admits a frame, maintaining order and lazily evicting both
// horizons relative to the newest admitted timestamp (not wall clock,
// to tolerate ingest jitter). Returns the frame/byte count deltas for
// gauge accounting.
func (b *tenantBuffer) write(frame models.Frame, short, long, tolerance time.Duration, now time.Time) (frameDelta int, byteDelta int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.frames); n > 0 {
		head := b.frames[n-1].CapturedAt
		if head.Sub(frame.CapturedAt) > tolerance {
			return 0, 0, services.ErrStaleFrame
		}
		if b.isDuplicate(frame) {
			return 0, 0, services.ErrDuplicateFrame
		}
	}

	b.insertOrdered(frame)
	b.lastWrite = now
	frameDelta, byteDelta = 1, int64(len(frame.Payload))

	// Evict from the long window: keep frames with age < long relative
	// to the newest admitted timestamp.
	newest := b.frames[len(b.frames)-1].CapturedAt
	cut := 0
	for cut < len(b.frames) && newest.Sub(b.frames[cut].CapturedAt) >= long {
		byteDelta -= int64(len(b.frames[cut].Payload))
		frameDelta--
		cut++
	}
	if cut > 0 {
		b.frames = append(b.frames[:0:0], b.frames[cut:]...)
		b.shortStart -= cut
		if b.shortStart < 0 {
			b.shortStart = 0
		}
	}

	// Advance the short index the same way.
	for b.shortStart < len(b.frames) && newest.Sub(b.frames[b.shortStart].CapturedAt) >= short {
		b.shortStart++
	}

	b.bytes += byteDelta
	return frameDelta, byteDelta, nil
}

// isDuplicate reports whether an equal (timestamp, sequence) pair is
// already buffered. Only the ordered tail at or after the candidate
// timestamp needs scanning. Caller holds the write lock.
func (b *tenantBuffer) isDuplicate(frame models.Frame) bool {
	for i := len(b.frames) - 1; i >= 0; i-- {
		f := b.frames[i]
		if f.CapturedAt.Before(frame.CapturedAt) {
			return false
		}
		if f.CapturedAt.Equal(frame.CapturedAt) && f.Sequence == frame.Sequence {
			return true
		}
	}
	return false
}

// insertOrdered places a frame at its timestamp position. The common
// case is an append; a slightly-late frame (within tolerance) is
// reordered in place rather than rejected. Caller holds the write lock.
func (b *tenantBuffer) insertOrdered(frame models.Frame) {
	n := len(b.frames)
	if n == 0 || !frame.CapturedAt.Before(b.frames[n-1].CapturedAt) {
		b.frames = append(b.frames, frame)
		return
	}
	i := sort.Search(n, func(i int) bool {
		return b.frames[i].CapturedAt.After(frame.CapturedAt)
	})
	b.frames = append(b.frames, models.Frame{})
	copy(b.frames[i+1:], b.frames[i:])
	b.frames[i] = frame
}

// readShort returns a copy-on-read snapshot of the short window,
// newest-last. Eviction is lazy: the snapshot re-applies the horizon
// relative to the newest buffered frame without mutating state, so
// readers never contend on a write lock.
func (b *tenantBuffer) readShort(short time.Duration) []models.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.frames) == 0 {
		return nil
	}
	newest := b.frames[len(b.frames)-1].CapturedAt

	start := b.shortStart
	for start < len(b.frames) && newest.Sub(b.frames[start].CapturedAt) >= short {
		start++
	}

	out := make([]models.Frame, len(b.frames)-start)
	copy(out, b.frames[start:])
	return out
}

// extract materializes a clip of the frames captured in [from, to],
// clipped to the retained range. Truncation is reported, never hidden:
// under-delivering an incident clip silently would corrupt the alert
// pipeline downstream.
func (b *tenantBuffer) extract(tenantID uuid.UUID, from, to time.Time) models.Clip {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clip := models.Clip{TenantID: tenantID, From: from, To: to}
	if len(b.frames) == 0 {
		clip.Truncated = true
		return clip
	}

	oldest := b.frames[0].CapturedAt
	clip.OldestRetained = oldest
	if from.Before(oldest) {
		clip.Truncated = true
	}

	lo := sort.Search(len(b.frames), func(i int) bool {
		return !b.frames[i].CapturedAt.Before(from)
	})
	hi := sort.Search(len(b.frames), func(i int) bool {
		return b.frames[i].CapturedAt.After(to)
	})
	if lo >= hi {
		return clip
	}

	clip.Frames = make([]models.Frame, hi-lo)
	copy(clip.Frames, b.frames[lo:hi])
	return clip
}

// size returns the current frame and byte counts.
func (b *tenantBuffer) size() (frames int, bytes int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames), b.bytes
}

// idleSince reports the last write time.
func (b *tenantBuffer) idleSince() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastWrite
}
