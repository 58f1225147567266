package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/config"
	"github.com/halcyonsec/camrelay/internal/observability"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(cfg config.BufferConfig) *Store {
	return NewStore(cfg, observability.NewTestMetrics(), zap.NewNop())
}

func testBufferConfig() config.BufferConfig {
	return config.BufferConfig{
		ShortWindow:      3 * time.Second,
		LongWindow:       10 * time.Second,
		IdleRetention:    30 * time.Minute,
		RetentionSweep:   time.Minute,
		ReorderTolerance: 2 * time.Second,
	}
}

func TestStoreWriteAndReadShort(t *testing.T) {
	store := testStore(testBufferConfig())
	tenantA, tenantB := uuid.New(), uuid.New()

	for _, sec := range []int{10, 11, 12} {
		require.NoError(t, store.Write(tenantA, frameAt(sec)))
	}
	require.NoError(t, store.Write(tenantB, frameAt(50)))

	snapA, err := store.ReadShort(tenantA)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, capturedSeconds(snapA))

	snapB, err := store.ReadShort(tenantB)
	require.NoError(t, err)
	assert.Equal(t, []int{50}, capturedSeconds(snapB))

	assert.Equal(t, 2, store.TenantCount())
}

func TestStoreUnknownTenant(t *testing.T) {
	store := testStore(testBufferConfig())

	_, err := store.ReadShort(uuid.New())
	assert.ErrorIs(t, err, services.ErrBufferNotFound)

	_, err = store.Extract(uuid.New(), epoch, epoch.Add(time.Minute))
	assert.ErrorIs(t, err, services.ErrBufferNotFound)
}

func TestStoreExtract(t *testing.T) {
	store := testStore(testBufferConfig())
	tenantID := uuid.New()

	for _, sec := range []int{5, 6, 7, 8} {
		require.NoError(t, store.Write(tenantID, frameAt(sec)))
	}

	clip, err := store.Extract(tenantID, epoch.Add(6*time.Second), epoch.Add(8*time.Second))
	require.NoError(t, err)
	assert.Equal(t, tenantID, clip.TenantID)
	assert.Equal(t, []int{6, 7, 8}, capturedSeconds(clip.Frames))
	assert.False(t, clip.Truncated)
}

func TestStoreWriteErrorsPropagate(t *testing.T) {
	store := testStore(testBufferConfig())
	tenantID := uuid.New()

	require.NoError(t, store.Write(tenantID, frameAt(10)))
	assert.ErrorIs(t, store.Write(tenantID, frameAt(10)), services.ErrDuplicateFrame)
	assert.ErrorIs(t, store.Write(tenantID, frameAt(5)), services.ErrStaleFrame)
}

func TestStoreRetentionSweep(t *testing.T) {
	cfg := testBufferConfig()
	store := testStore(cfg)

	var reclaimed []uuid.UUID
	store.OnReclaim(func(id uuid.UUID) { reclaimed = append(reclaimed, id) })

	idle, fresh := uuid.New(), uuid.New()
	require.NoError(t, store.Write(idle, frameAt(1)))
	require.NoError(t, store.Write(fresh, frameAt(1)))

	// Nothing idle yet.
	assert.Equal(t, 0, store.sweep(time.Now()))

	// Backdate the idle tenant past the retention horizon.
	store.mu.Lock()
	store.tenants[idle].lastWrite = time.Now().Add(-cfg.IdleRetention - time.Minute)
	store.mu.Unlock()

	assert.Equal(t, 1, store.sweep(time.Now()))
	assert.Equal(t, []uuid.UUID{idle}, reclaimed)
	assert.Equal(t, 1, store.TenantCount())

	_, err := store.ReadShort(idle)
	assert.ErrorIs(t, err, services.ErrBufferNotFound)
	_, err = store.ReadShort(fresh)
	assert.NoError(t, err)
}

func TestStoreConcurrentTenants(t *testing.T) {
	store := testStore(testBufferConfig())

	tenants := make([]uuid.UUID, 8)
	for i := range tenants {
		tenants[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range tenants {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for sec := 0; sec < 20; sec++ {
				err := store.Write(id, models.Frame{
					CapturedAt: epoch.Add(time.Duration(sec) * 100 * time.Millisecond),
					Sequence:   uint64(sec),
					Payload:    []byte("frame"),
				})
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, len(tenants), store.TenantCount())
	for _, id := range tenants {
		snap, err := store.ReadShort(id)
		require.NoError(t, err)
		assert.NotEmpty(t, snap)
		for i := 1; i < len(snap); i++ {
			assert.False(t, snap[i].CapturedAt.Before(snap[i-1].CapturedAt))
		}
	}
}
