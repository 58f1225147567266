package middleware

import (
	"net/http"

	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/services"
	"github.com/halcyonsec/camrelay/utils"
	"go.uber.org/zap"
)

// KeyAdmitter validates presented credentials against the tenant index
type KeyAdmitter interface {
	Admit(presentedKey string) (*models.Tenant, error)
	AdmitAdmin(presentedKey string) error
}

// Header names for the two credential classes. Tenant keys authenticate
// camera traffic; the admin key authenticates provisioning calls and
// never admits frames.
const (
	APIKeyHeader   = "X-API-Key"
	AdminKeyHeader = "X-Admin-Key"
)

// AuthMiddleware provides API key authentication middleware
type AuthMiddleware struct {
	admitter KeyAdmitter
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(admitter KeyAdmitter, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		admitter: admitter,
		logger:   logger,
	}
}

// RequireTenant admits the request's tenant key and stores the tenant
// in the request context.
func (m *AuthMiddleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		tenant, err := m.admitter.Admit(r.Header.Get(APIKeyHeader))
		if err != nil {
			m.logger.Warn("tenant admission refused",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.Error(err))

			switch {
			case services.IsForbiddenError(err):
				_ = utils.WriteForbidden(w, err.Error())
			default:
				_ = utils.WriteUnauthorized(w, err.Error())
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(ctx, tenant)))
	})
}

// RequireAdmin admits the request's admin key. The admin credential is
// only valid on provisioning routes.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestIDFromContext(r.Context())

		if err := m.admitter.AdmitAdmin(r.Header.Get(AdminKeyHeader)); err != nil {
			m.logger.Warn("admin admission refused",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteForbidden(w, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
