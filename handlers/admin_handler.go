package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/halcyonsec/camrelay/models"
	"github.com/halcyonsec/camrelay/utils"
	"go.uber.org/zap"
)

// CreateTenantRequest represents a tenant provisioning request
type CreateTenantRequest struct {
	Name  string `json:"name" validate:"required,min=3,max=128"`
	Email string `json:"email" validate:"required,email"`
}

// CreateTenantResponse carries the plaintext key. This is the only
// place the key ever appears; after this response only its digest
// exists anywhere in the system.
type CreateTenantResponse struct {
	Tenant *models.Tenant `json:"tenant"`
	APIKey string         `json:"api_key"`
}

// CredentialsService defines the interface for tenant provisioning
type CredentialsService interface {
	Create(ctx context.Context, name, email string) (*models.Tenant, string, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Tenant, error)
}

// AdminHandler handles tenant provisioning operations
type AdminHandler struct {
	service CredentialsService
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(service CredentialsService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger,
	}
}

// ListTenants handles GET /api/v1/admin/tenants
func (h *AdminHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, tenants)
}

// CreateTenant handles POST /api/v1/admin/tenants
func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	tenant, key, err := h.service.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("tenant provisioned",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("name", tenant.Name))
	_ = utils.WriteCreated(w, CreateTenantResponse{Tenant: tenant, APIKey: key})
}

// RevokeTenant handles POST /api/v1/admin/tenants/{id}/revoke
func (h *AdminHandler) RevokeTenant(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Revoke, "tenant revoked")
}

// ReactivateTenant handles POST /api/v1/admin/tenants/{id}/reactivate
func (h *AdminHandler) ReactivateTenant(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Reactivate, "tenant reactivated")
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) error, event string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "id must be a valid UUID", nil)
		return
	}

	if err := op(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info(event, zap.String("tenant_id", id.String()))
	utils.WriteNoContent(w)
}
