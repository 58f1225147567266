package admission

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/halcyonsec/camrelay/services/credentials"
	"go.uber.org/zap"
)

// Service is the admission gate: it resolves presented API keys to
// tenant identities and guards the admin surface with a separate
// credential. Rejections for unknown and revoked keys take the same
// comparison path so response timing does not reveal whether a key
// exists (key-enumeration side channel).
type Service struct {
	creds       *credentials.Service
	adminDigest []byte // SHA-256 of the configured admin key; nil when unset
	logger      *zap.Logger
}

// NewService creates an admission gate over the credential store.
// adminKey is the process-level admin credential, distinct from any
// tenant key; empty disables the admin surface entirely.
func NewService(creds *credentials.Service, adminKey string, logger *zap.Logger) *Service {
	var adminDigest []byte
	if adminKey != "" {
		sum := sha256.Sum256([]byte(adminKey))
		adminDigest = sum[:]
	}
	return &Service{
		creds:       creds,
		adminDigest: adminDigest,
		logger:      logger,
	}
}

// dummyDigest is compared against when no tenant matches, so the
// unknown-key path performs the same work as the known-key path.
var dummyDigest = sha256.Sum256([]byte("camrelay.admission.dummy"))

// Admit validates a presented tenant key and returns the tenant
// identity, or ErrMissingKey / ErrUnknownKey / ErrTenantRevoked.
// The key material comparison always runs before status is consulted.
func (s *Service) Admit(presentedKey string) (*models.Tenant, error) {
	if presentedKey == "" {
		return nil, services.ErrMissingKey
	}

	presented := sha256.Sum256([]byte(credentials.DigestKey(presentedKey)))

	tenant, found := s.creds.Lookup(presentedKey)

	stored := dummyDigest
	if found {
		stored = sha256.Sum256([]byte(tenant.KeyDigest))
	}
	match := subtle.ConstantTimeCompare(presented[:], stored[:]) == 1

	if !found || !match {
		return nil, services.ErrUnknownKey
	}
	if !tenant.IsActive() {
		return nil, services.ErrTenantRevoked
	}
	return tenant, nil
}

// AdmitAdmin validates the admin credential. A tenant key never grants
// admin capability: this path only compares against the configured
// admin digest.
func (s *Service) AdmitAdmin(presentedKey string) error {
	if presentedKey == "" {
		return services.ErrMissingKey
	}
	if s.adminDigest == nil {
		s.logger.Warn("admin request rejected: no admin key configured")
		return services.ErrAdminKey
	}

	sum := sha256.Sum256([]byte(presentedKey))
	if subtle.ConstantTimeCompare(sum[:], s.adminDigest) != 1 {
		return services.ErrAdminKey
	}
	return nil
}
