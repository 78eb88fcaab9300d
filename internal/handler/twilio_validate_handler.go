package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bookline-ai/voice-scheduler-service/internal/config"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"go.uber.org/zap"
)

// credentialChecker verifies that a Twilio account owns a phone number.
type credentialChecker interface {
	Validate(accountSID, authToken, phoneNumber string) error
}

// TwilioValidateHandler checks premium-tenant Twilio credentials against the
// Twilio API before they are accepted at onboarding. Credentials come either
// inline in the request or from the per-tenant set configured via
// TWILIO_BUSINESS_<ID> environment variables.
type TwilioValidateHandler struct {
	cfg       *config.Config
	validator credentialChecker
}

// NewTwilioValidateHandler creates a new credential validation handler
func NewTwilioValidateHandler(cfg *config.Config, validator credentialChecker) *TwilioValidateHandler {
	return &TwilioValidateHandler{cfg: cfg, validator: validator}
}

type validateRequest struct {
	TenantID    string `json:"tenantId"`
	AccountSID  string `json:"accountSid"`
	AuthToken   string `json:"authToken"`
	PhoneNumber string `json:"phoneNumber"`
}

type validateResponse struct {
	Valid       bool   `json:"valid"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Validate verifies that the submitted credentials can see the submitted
// phone number. With a tenantId the configured credentials for that tenant
// are checked instead; unknown tenants are a 404. Invalid credentials are a
// 200 with valid=false, not an HTTP error; the dashboard shows the message
// inline.
func (h *TwilioValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.TenantID != "" {
		cred, ok := h.cfg.TenantTwilio[req.TenantID]
		if !ok {
			http.Error(w, "no twilio credentials configured for tenant", http.StatusNotFound)
			return
		}
		req.AccountSID = cred.AccountSID
		req.AuthToken = cred.AuthToken
		if req.PhoneNumber == "" {
			req.PhoneNumber = cred.PhoneNumber
		}
	}

	if req.AccountSID == "" || req.AuthToken == "" || req.PhoneNumber == "" {
		http.Error(w, "accountSid, authToken and phoneNumber are required", http.StatusBadRequest)
		return
	}

	resp := validateResponse{Valid: true, PhoneNumber: req.PhoneNumber}
	if err := h.validator.Validate(req.AccountSID, req.AuthToken, req.PhoneNumber); err != nil {
		logger.Base().Info("twilio credential validation failed",
			zap.String("tenant_id", req.TenantID), zap.Error(err))
		resp = validateResponse{Valid: false, PhoneNumber: req.PhoneNumber, Error: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
