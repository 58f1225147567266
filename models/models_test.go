package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTenant(t *testing.T) {
	tenant := NewTenant("Acme Cameras", "ops@acme.example", "digest")

	assert.NotEqual(t, uuid.Nil, tenant.ID)
	assert.Equal(t, TenantActive, tenant.Status)
	assert.True(t, tenant.IsActive())
	assert.Equal(t, "tenants", tenant.TableName())
}

func TestTenant_KeyDigestRedactedFromJSON(t *testing.T) {
	tenant := NewTenant("Acme Cameras", "ops@acme.example", "deadbeef")

	data, err := json.Marshal(tenant)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "deadbeef")
	assert.Contains(t, string(data), "ops@acme.example")
}

func TestTenant_Revoked(t *testing.T) {
	tenant := NewTenant("Acme Cameras", "ops@acme.example", "digest")
	tenant.Status = TenantRevoked
	assert.False(t, tenant.IsActive())
}

func TestFrame_Age(t *testing.T) {
	now := time.Now()
	f := Frame{CapturedAt: now.Add(-3 * time.Second)}
	assert.Equal(t, 3*time.Second, f.Age(now))
}

func TestClip_Duration(t *testing.T) {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clip := Clip{
		Frames: []Frame{
			{CapturedAt: base},
			{CapturedAt: base.Add(time.Second)},
			{CapturedAt: base.Add(4 * time.Second)},
		},
	}
	assert.Equal(t, 4*time.Second, clip.Duration())
	assert.False(t, clip.Empty())

	empty := Clip{}
	assert.True(t, empty.Empty())
	assert.Zero(t, empty.Duration())
}
