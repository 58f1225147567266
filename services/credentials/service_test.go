package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRepo is an in-memory TenantRepository for service tests.
type fakeRepo struct {
	tenants map[uuid.UUID]*models.Tenant
	failAll bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tenants: make(map[uuid.UUID]*models.Tenant)}
}

func (f *fakeRepo) Create(_ context.Context, t *models.Tenant) error {
	if f.failAll {
		return errors.New("db down")
	}
	copied := *t
	f.tenants[t.ID] = &copied
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, services.ErrTenantNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.TenantStatus) error {
	if f.failAll {
		return errors.New("db down")
	}
	t, ok := f.tenants[id]
	if !ok {
		return services.ErrTenantNotFound
	}
	t.Status = status
	return nil
}

func (f *fakeRepo) List(_ context.Context) ([]*models.Tenant, error) {
	var out []*models.Tenant
	for _, t := range f.tenants {
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeRepo) ActiveEmailExists(_ context.Context, email string) (bool, error) {
	for _, t := range f.tenants {
		if t.Email == email && t.Status == models.TenantActive {
			return true, nil
		}
	}
	return false, nil
}

func newTestService(t *testing.T, allowDupes bool) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, allowDupes, zap.NewNop()), repo
}

func TestService_CreateAndLookup(t *testing.T) {
	svc, _ := newTestService(t, true)

	tenant, key, err := svc.Create(context.Background(), "Acme", "ops@acme.example")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "crk_"))
	assert.Len(t, key, len("crk_")+64)
	assert.Equal(t, models.TenantActive, tenant.Status)

	// the returned key resolves to the tenant immediately
	found, ok := svc.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, tenant.ID, found.ID)

	// key digest, not the key, is what got stored
	assert.Equal(t, DigestKey(key), tenant.KeyDigest)
	assert.NotContains(t, tenant.KeyDigest, key)
}

func TestService_Lookup_UnknownKey(t *testing.T) {
	svc, _ := newTestService(t, true)

	_, ok := svc.Lookup("crk_" + strings.Repeat("0", 64))
	assert.False(t, ok)
}

func TestService_KeysAreUnique(t *testing.T) {
	svc, _ := newTestService(t, true)

	_, key1, err := svc.Create(context.Background(), "A", "a@example.com")
	require.NoError(t, err)
	_, key2, err := svc.Create(context.Background(), "B", "b@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

func TestService_DuplicateEmailPolicy(t *testing.T) {
	t.Run("duplicates allowed by default", func(t *testing.T) {
		svc, _ := newTestService(t, true)
		_, _, err := svc.Create(context.Background(), "A", "shared@example.com")
		require.NoError(t, err)
		_, _, err = svc.Create(context.Background(), "B", "shared@example.com")
		assert.NoError(t, err)
	})

	t.Run("duplicates rejected when configured", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		_, _, err := svc.Create(context.Background(), "A", "shared@example.com")
		require.NoError(t, err)
		_, _, err = svc.Create(context.Background(), "B", "shared@example.com")
		assert.True(t, errors.Is(err, services.ErrDuplicateEmail))
	})

	t.Run("revoked tenant frees the email", func(t *testing.T) {
		svc, _ := newTestService(t, false)
		first, _, err := svc.Create(context.Background(), "A", "shared@example.com")
		require.NoError(t, err)
		require.NoError(t, svc.Revoke(context.Background(), first.ID))

		_, _, err = svc.Create(context.Background(), "B", "shared@example.com")
		assert.NoError(t, err)
	})
}

func TestService_RevokeReactivate(t *testing.T) {
	svc, repo := newTestService(t, true)
	tenant, key, err := svc.Create(context.Background(), "Acme", "ops@acme.example")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), tenant.ID))

	// revoked tenants still resolve; status decides admission, not lookup
	found, ok := svc.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, models.TenantRevoked, found.Status)

	// persisted synchronously, not just in the index
	stored, err := repo.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenantRevoked, stored.Status)

	// idempotent
	assert.NoError(t, svc.Revoke(context.Background(), tenant.ID))

	require.NoError(t, svc.Reactivate(context.Background(), tenant.ID))
	found, _ = svc.Lookup(key)
	assert.Equal(t, models.TenantActive, found.Status)
}

func TestService_Revoke_UnknownTenant(t *testing.T) {
	svc, _ := newTestService(t, true)
	err := svc.Revoke(context.Background(), uuid.New())
	assert.True(t, services.IsNotFoundError(err))
}

func TestService_MutationNotIndexedOnPersistFailure(t *testing.T) {
	svc, repo := newTestService(t, true)
	repo.failAll = true

	_, _, err := svc.Create(context.Background(), "Acme", "ops@acme.example")
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))

	// nothing leaked into the index
	tenants, lookupErr := svc.List(context.Background())
	require.NoError(t, lookupErr)
	assert.Empty(t, tenants)
}

func TestService_Load(t *testing.T) {
	repo := newFakeRepo()
	seeded := models.NewTenant("Seeded", "seed@example.com", DigestKey("crk_seeded"))
	require.NoError(t, repo.Create(context.Background(), seeded))

	svc := NewService(repo, true, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))

	found, ok := svc.Lookup("crk_seeded")
	require.True(t, ok)
	assert.Equal(t, seeded.ID, found.ID)
}
