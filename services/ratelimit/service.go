package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result represents the outcome of a rate limit check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Service enforces the per-tenant frame-rate ceiling with an in-memory
// sliding one-second window. It sits on the ingest hot path, so checks
// are lock-per-call map operations with no I/O. Exceeding the ceiling
// does not reject the frame; the caller drops the analysis hand-off
// only (buffer correctness outranks analysis delivery).
type Service struct {
	limit  int
	logger *zap.Logger

	mu      sync.Mutex
	windows map[uuid.UUID]*window
}

// window tracks one tenant's admissions inside the sliding second.
type window struct {
	stamps []time.Time
}

// NewService creates a rate limit service with the given per-second ceiling
func NewService(framesPerSecond int, logger *zap.Logger) *Service {
	return &Service{
		limit:   framesPerSecond,
		logger:  logger,
		windows: make(map[uuid.UUID]*window),
	}
}

// Record accounts one admitted frame and reports whether the tenant is
// within its ceiling at that instant.
func (s *Service) Record(tenantID uuid.UUID, now time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[tenantID]
	if !ok {
		w = &window{}
		s.windows[tenantID] = w
	}

	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cutoff) {
		i++
	}
	w.stamps = append(w.stamps[i:], now)

	count := len(w.stamps)
	resetAt := w.stamps[0].Add(time.Second)

	if count > s.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}
	return Result{Allowed: true, Remaining: s.limit - count, ResetAt: resetAt}
}

// Forget drops a tenant's window. Called when the tenant's buffer is
// destroyed by the idle-retention sweep so the map stays bounded.
func (s *Service) Forget(tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, tenantID)
}

// Tracked returns the number of tenants currently holding a window.
func (s *Service) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
