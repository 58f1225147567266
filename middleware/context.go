package middleware

import (
	"context"

	"github.com/halcyonsec/camrelay/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// TenantKey is the context key for the admitted tenant
	TenantKey contextKey = "tenant"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetTenantFromContext retrieves the admitted tenant from context
func GetTenantFromContext(ctx context.Context) *models.Tenant {
	if val := ctx.Value(TenantKey); val != nil {
		if tenant, ok := val.(*models.Tenant); ok {
			return tenant
		}
	}
	return nil
}

// WithTenant adds an admitted tenant to the context
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}
