package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/repositories"
	"github.com/halcyonsec/camrelay/services"
	"go.uber.org/zap"
)

// keyPrefix marks relay tenant keys so they are visually distinct from
// the admin credential.
const keyPrefix = "crk_"

// Service is the credential store: a write-through in-memory index over
// the tenant repository. Lookups are O(1) and I/O-free so the admission
// gate can sit on the ingest hot path; every mutation is persisted
// before the index (and the caller) sees it.
type Service struct {
	repo   repositories.TenantRepository
	logger *zap.Logger

	// allowDuplicateEmails controls the Create conflict policy
	allowDuplicateEmails bool

	mu       sync.RWMutex
	byDigest map[string]*models.Tenant
	byID     map[uuid.UUID]*models.Tenant
}

// NewService creates a credential store backed by the given repository
func NewService(repo repositories.TenantRepository, allowDuplicateEmails bool, logger *zap.Logger) *Service {
	return &Service{
		repo:                 repo,
		logger:               logger,
		allowDuplicateEmails: allowDuplicateEmails,
		byDigest:             make(map[string]*models.Tenant),
		byID:                 make(map[uuid.UUID]*models.Tenant),
	}
}

// Load hydrates the in-memory index from the repository. Called once at
// startup so credentials survive restarts.
func (s *Service) Load(ctx context.Context) error {
	tenants, err := s.repo.List(ctx)
	if err != nil {
		return services.WrapInternal("load tenants", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tenants {
		s.byDigest[t.KeyDigest] = t
		s.byID[t.ID] = t
	}

	s.logger.Info("credential index loaded", zap.Int("tenants", len(tenants)))
	return nil
}

// Create provisions a new tenant and returns it together with the
// plaintext API key. The key is not retrievable again: only its SHA-256
// digest is stored.
func (s *Service) Create(ctx context.Context, name, email string) (*models.Tenant, string, error) {
	if !s.allowDuplicateEmails {
		exists, err := s.repo.ActiveEmailExists(ctx, email)
		if err != nil {
			return nil, "", services.WrapInternal("check tenant email", err)
		}
		if exists {
			return nil, "", services.ErrDuplicateEmail
		}
	}

	key, digest, err := generateKey()
	if err != nil {
		return nil, "", services.WrapInternal("generate API key", err)
	}

	tenant := models.NewTenant(name, email, digest)
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, "", services.WrapInternal("persist tenant", err)
	}

	s.mu.Lock()
	s.byDigest[digest] = tenant
	s.byID[tenant.ID] = tenant
	s.mu.Unlock()

	s.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("name", name))
	return tenant, key, nil
}

// Lookup resolves a presented key to a snapshot of its tenant. The
// caller owns the copy and does its own constant-time compare against
// the snapshot's digest.
func (s *Service) Lookup(presentedKey string) (*models.Tenant, bool) {
	digest := DigestKey(presentedKey)

	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.byDigest[digest]
	if !ok {
		return nil, false
	}
	copied := *tenant
	return &copied, true
}

// GetByID returns a snapshot of the tenant with the given id.
func (s *Service) GetByID(id uuid.UUID) (*models.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	copied := *tenant
	return &copied, true
}

// Revoke marks a tenant revoked. Idempotent: revoking a revoked tenant
// is a no-op success. Buffered frames are not touched; revocation
// affects only new admission.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.TenantRevoked)
}

// Reactivate marks a tenant active again. Idempotent.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, models.TenantActive)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if services.IsNotFoundError(err) {
			return err
		}
		return services.WrapInternal("persist tenant status", err)
	}

	s.mu.Lock()
	if tenant, ok := s.byID[id]; ok {
		tenant.Status = status
	}
	s.mu.Unlock()

	s.logger.Info("tenant status changed",
		zap.String("tenant_id", id.String()),
		zap.String("status", string(status)))
	return nil
}

// List returns all tenants from the repository, newest first. Key
// digests never leave this process: the JSON encoding redacts them.
func (s *Service) List(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := s.repo.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("list tenants", err)
	}
	return tenants, nil
}

// DigestKey returns the hex SHA-256 digest of an API key.
func DigestKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// generateKey produces a new high-entropy tenant key and its digest.
func generateKey() (key, digest string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("read random bytes: %w", err)
	}
	key = keyPrefix + hex.EncodeToString(raw)
	return key, DigestKey(key), nil
}
