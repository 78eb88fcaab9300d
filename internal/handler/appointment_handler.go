package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookline-ai/voice-scheduler-service/internal/auth"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/gorilla/mux"
)

// AppointmentHandler exposes the appointments booked by the voice agent.
// Every route is scoped to the tenant in the caller's token.
type AppointmentHandler struct {
	appointments repository.AppointmentRepository
	tokens       *auth.Manager
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(appointments repository.AppointmentRepository, tokens *auth.Manager) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments, tokens: tokens}
}

// tenantFromRequest authenticates the caller and returns their tenant scope.
func (h *AppointmentHandler) tenantFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, err := h.tokens.FromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return claims.TenantID, true
}

// GetAppointment returns one appointment by ID within the caller's tenant.
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	appt, err := h.appointments.GetByID(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

// ListCallAppointments returns the appointments booked during one call, in
// creation order.
func (h *AppointmentHandler) ListCallAppointments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	callSID := mux.Vars(r)["callSid"]

	appts, err := h.appointments.ListByCall(r.Context(), tenantID, callSID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appts)
}
