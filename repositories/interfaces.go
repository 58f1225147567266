package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/models"
)

// TenantRepository defines persistence for tenant credentials.
// Mutations must be durable before the call returns: the admin control
// plane relies on a successful call surviving an immediate crash.
type TenantRepository interface {
	// Create persists a new tenant
	Create(ctx context.Context, tenant *models.Tenant) error

	// GetByID retrieves a tenant by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)

	// UpdateStatus transitions a tenant between active and revoked
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error

	// List returns all tenants, newest first
	List(ctx context.Context) ([]*models.Tenant, error)

	// ActiveEmailExists reports whether an active tenant is bound to the email
	ActiveEmailExists(ctx context.Context, email string) (bool, error)
}
