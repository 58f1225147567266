package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/internal/observability"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"go.uber.org/zap"
)

// Store is the dual-horizon frame buffer: a registry of per-tenant
// buffers indexed by tenant id. The per-tenant buffer is the unit of
// mutual exclusion; the registry lock is held only for map access, so
// there is no global lock across tenants.
type Store struct {
	cfg     config.BufferConfig
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	tenants map[uuid.UUID]*tenantBuffer

	// onReclaim is invoked with the tenant id when the retention sweep
	// destroys an idle buffer (used to release rate-limit state).
	onReclaim func(uuid.UUID)
}

// NewStore creates a dual-horizon buffer store
func NewStore(cfg config.BufferConfig, metrics *observability.Metrics, logger *zap.Logger) *Store {
	return &Store{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tenants: make(map[uuid.UUID]*tenantBuffer),
	}
}

// OnReclaim registers a callback fired for each buffer the retention
// sweep destroys. Must be called before the sweep worker starts.
func (s *Store) OnReclaim(fn func(uuid.UUID)) {
	s.onReclaim = fn
}

// Write admits a frame into the tenant's buffer, creating the buffer
// lazily on first write. Eviction of both horizons happens here,
// bounded to the tenant currently writing.
func (s *Store) Write(tenantID uuid.UUID, frame models.Frame) error {
	tb := s.getOrCreate(tenantID)

	frameDelta, byteDelta, err := tb.write(frame,
		s.cfg.ShortWindow, s.cfg.LongWindow, s.cfg.ReorderTolerance, time.Now())
	if err != nil {
		return err
	}

	s.metrics.BufferedFrames.Add(float64(frameDelta))
	s.metrics.BufferedBytes.Add(float64(byteDelta))
	return nil
}

// ReadShort returns a snapshot of the tenant's short window,
// newest-last. The snapshot is a copy; a slow reader never holds up
// ingest.
func (s *Store) ReadShort(tenantID uuid.UUID) ([]models.Frame, error) {
	tb, ok := s.get(tenantID)
	if !ok {
		return nil, services.ErrBufferNotFound
	}
	return tb.readShort(s.cfg.ShortWindow), nil
}

// Extract materializes a clip of the tenant's long window over
// [from, to], clipped to the retained range with truncation reported.
func (s *Store) Extract(tenantID uuid.UUID, from, to time.Time) (*models.Clip, error) {
	tb, ok := s.get(tenantID)
	if !ok {
		return nil, services.ErrBufferNotFound
	}
	clip := tb.extract(tenantID, from, to)
	return &clip, nil
}

// LongWindow returns the configured long horizon.
func (s *Store) LongWindow() time.Duration {
	return s.cfg.LongWindow
}

// TenantCount returns the number of live tenant buffers.
func (s *Store) TenantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants)
}

func (s *Store) get(tenantID uuid.UUID) (*tenantBuffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tb, ok := s.tenants[tenantID]
	return tb, ok
}

func (s *Store) getOrCreate(tenantID uuid.UUID) *tenantBuffer {
	if tb, ok := s.get(tenantID); ok {
		return tb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tb, ok := s.tenants[tenantID]; ok {
		return tb
	}
	tb := &tenantBuffer{}
	s.tenants[tenantID] = tb
	s.metrics.TenantBuffers.Inc()
	s.logger.Debug("tenant buffer created", zap.String("tenant_id", tenantID.String()))
	return tb
}

// StartRetentionWorker destroys buffers idle longer than the retention
// duration. Revocation never purges a buffer; only this sweep does,
// which preserves forensic extraction for incidents predating a
// revocation.
func (s *Store) StartRetentionWorker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetentionSweep)
	defer ticker.Stop()

	s.logger.Info("started buffer retention worker",
		zap.Duration("interval", s.cfg.RetentionSweep),
		zap.Duration("retention", s.cfg.IdleRetention))

	for {
		select {
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				s.logger.Info("reclaimed idle tenant buffers", zap.Int("count", n))
			}
		case <-ctx.Done():
			s.logger.Info("stopping buffer retention worker")
			return
		}
	}
}

// sweep removes buffers whose last write is older than the retention
// duration, returning how many were reclaimed.
func (s *Store) sweep(now time.Time) int {
	type victim struct {
		id uuid.UUID
		tb *tenantBuffer
	}

	s.mu.RLock()
	var victims []victim
	for id, tb := range s.tenants {
		if now.Sub(tb.idleSince()) > s.cfg.IdleRetention {
			victims = append(victims, victim{id, tb})
		}
	}
	s.mu.RUnlock()

	if len(victims) == 0 {
		return 0
	}

	s.mu.Lock()
	reclaimed := 0
	for _, v := range victims {
		// Re-check under the write lock: a write may have landed since.
		if now.Sub(v.tb.idleSince()) <= s.cfg.IdleRetention {
			continue
		}
		frames, bytes := v.tb.size()
		delete(s.tenants, v.id)
		reclaimed++

		s.metrics.TenantBuffers.Dec()
		s.metrics.BuffersReclaimed.Inc()
		s.metrics.BufferedFrames.Sub(float64(frames))
		s.metrics.BufferedBytes.Sub(float64(bytes))

		if s.onReclaim != nil {
			s.onReclaim(v.id)
		}
	}
	s.mu.Unlock()
	return reclaimed
}
