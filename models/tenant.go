package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the lifecycle state of a tenant credential
type TenantStatus string

const (
	TenantActive  TenantStatus = "active"
	TenantRevoked TenantStatus = "revoked"
)

// Tenant represents one authenticated customer of the relay.
// Tenants are never deleted; revocation is a status transition so the
// audit history survives. KeyDigest is the SHA-256 of the API key; the
// plaintext key is shown exactly once at creation.
type Tenant struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Email     string       `json:"email" db:"email"`
	KeyDigest string       `json:"-" db:"api_key_digest"`
	Status    TenantStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a new active Tenant instance
func NewTenant(name, email, keyDigest string) *Tenant {
	now := time.Now().UTC()
	return &Tenant{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		KeyDigest: keyDigest,
		Status:    TenantActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if the tenant may ingest frames
func (t *Tenant) IsActive() bool {
	return t.Status == TenantActive
}
