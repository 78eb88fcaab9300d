package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bookline-ai/voice-scheduler-service/internal/auth"
	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/routing"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TenantHandler handles the onboarding and management API for tenants.
type TenantHandler struct {
	tenants repository.TenantRepository
	tokens  *auth.Manager
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenants repository.TenantRepository, tokens *auth.Manager) *TenantHandler {
	return &TenantHandler{tenants: tenants, tokens: tokens}
}

// onboardRequest is the onboarding payload: the business profile plus the
// inbound number to route to it.
type onboardRequest struct {
	domain.CreateTenantRequest
	PhoneNumber string `json:"phoneNumber"`
}

type onboardResponse struct {
	Tenant *domain.Tenant `json:"tenant"`
	Token  string         `json:"token,omitempty"`
}

// CreateTenant onboards a business: persists the tenant, registers its phone
// route, and issues a management API token. The caller presents an onboarding
// bearer token; a token already scoped to a tenant cannot onboard another.
func (h *TenantHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.FromRequest(r)
	if err != nil {
		http.Error(w, "missing or invalid bearer token", http.StatusUnauthorized)
		return
	}
	if claims.TenantID != "" {
		http.Error(w, "token is already bound to a tenant", http.StatusForbidden)
		return
	}

	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Timezone) == "" {
		http.Error(w, "businessName and timezone are required", http.StatusBadRequest)
		return
	}

	plan := req.Plan
	if plan == "" {
		plan = domain.PlanBasic
	}

	tenant := &domain.Tenant{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(req.Name),
		Plan:     plan,
		Timezone: req.Timezone,
	}
	if err := h.tenants.Create(r.Context(), tenant); err != nil {
		logger.Base().Error("tenant create failed", zap.Error(err))
		http.Error(w, "failed to create tenant", http.StatusInternalServerError)
		return
	}

	if number := routing.NormalizeNumber(req.PhoneNumber); number != "" {
		if err := h.tenants.PutRoute(r.Context(), number, tenant.ID); err != nil {
			logger.Base().Error("phone route create failed",
				zap.String("tenant_id", tenant.ID), zap.Error(err))
			http.Error(w, "failed to register phone route", http.StatusInternalServerError)
			return
		}
	}

	resp := onboardResponse{Tenant: tenant}
	token, err := h.tokens.Generate(tenant.ID, "owner")
	if err != nil {
		logger.Base().Warn("token issue failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
	} else {
		resp.Token = token
	}

	logger.Base().Info("tenant onboarded", zap.String("tenant_id", tenant.ID), zap.String("plan", plan))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// GetTenant returns one tenant by ID.
func (h *TenantHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tenant, err := h.tenants.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}
