package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ToolNameCreateAppointment is the single structured side-effect operation
// exposed to the conversational agent.
const ToolNameCreateAppointment = "create_appointment"

// CreateAppointmentSchema is the JSON schema for create_appointment input.
var CreateAppointmentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Name of the customer scheduling the appointment",
		},
		"phone": map[string]interface{}{
			"type":        "string",
			"description": "Phone number of the customer",
		},
		"email": map[string]interface{}{
			"type":        "string",
			"description": "Email address of the customer",
		},
		"service": map[string]interface{}{
			"type":        "string",
			"description": "Name of the service being booked",
		},
		"startTime": map[string]interface{}{
			"type":        "string",
			"description": "ISO-8601 start time for the appointment",
		},
		"endTime": map[string]interface{}{
			"type":        "string",
			"description": "ISO-8601 end time for the appointment",
		},
		"timezone": map[string]interface{}{
			"type":        "string",
			"description": "IANA timezone for the appointment",
		},
		"notes": map[string]interface{}{
			"type":        "string",
			"description": "Additional notes provided by the caller",
		},
	},
	"required": []string{"name", "service", "startTime"},
}

// AppointmentRecorder persists appointments produced by the agent during a
// call. It is the sole writer of agent-sourced appointments. The store is
// process-wide and shared read-only across bridges; a nil store means the
// persistence layer was never initialized and every invocation fails with
// ErrStorageUnavailable instead of crashing the bridge.
type AppointmentRecorder struct {
	store repository.AppointmentRepository
}

// NewAppointmentRecorder creates a recorder over the appointment store.
// store may be nil when the document store is not configured.
func NewAppointmentRecorder(store repository.AppointmentRepository) *AppointmentRecorder {
	return &AppointmentRecorder{store: store}
}

// CreateAppointment validates the input and writes exactly one appointment
// document attributed to (tenantID, callSID). Returns the natural-language
// confirmation the agent relays to the caller.
func (rec *AppointmentRecorder) CreateAppointment(ctx context.Context, tenantID, callSID string, input domain.CreateAppointmentInput) (string, error) {
	if err := validateAppointmentInput(input); err != nil {
		return "", err
	}
	if rec.store == nil {
		return "", ErrStorageUnavailable
	}

	appt := &domain.Appointment{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CallSID:   callSID,
		Name:      input.Name,
		Phone:     input.Phone,
		Email:     input.Email,
		Service:   input.Service,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Timezone:  input.Timezone,
		Notes:     input.Notes,
		Status:    domain.AppointmentStatusPendingConfirmation,
		Source:    domain.SourceTwilioVoice,
	}

	if err := rec.store.Create(ctx, appt); err != nil {
		return "", fmt.Errorf("failed to persist appointment: %w", err)
	}

	logger.Base().Info("appointment recorded",
		zap.String("appointment_id", appt.ID),
		zap.String("tenant_id", tenantID),
		zap.String("call_sid", callSID),
		zap.String("service", appt.Service))

	return fmt.Sprintf("I have saved your appointment for %s on %s.", appt.Service, appt.StartTime), nil
}

// Definition returns the create_appointment tool bound to one call. The
// executor closes over (tenantID, callSID) so the model never supplies
// attribution fields.
func (rec *AppointmentRecorder) Definition(tenantID, callSID string) *Definition {
	return &Definition{
		Name:        ToolNameCreateAppointment,
		Description: "Create an appointment for the caller with the specified details.",
		Parameters:  CreateAppointmentSchema,
		Execute: func(ctx context.Context, argumentsJSON string) (string, error) {
			var input domain.CreateAppointmentInput
			if err := json.Unmarshal([]byte(argumentsJSON), &input); err != nil {
				return "", fmt.Errorf("%w: malformed arguments: %v", ErrToolValidation, err)
			}
			return rec.CreateAppointment(ctx, tenantID, callSID, input)
		},
	}
}

// validateAppointmentInput rejects malformed input before any persistence
// attempt.
func validateAppointmentInput(input domain.CreateAppointmentInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrToolValidation)
	}
	if strings.TrimSpace(input.Service) == "" {
		return fmt.Errorf("%w: service is required", ErrToolValidation)
	}
	if strings.TrimSpace(input.StartTime) == "" {
		return fmt.Errorf("%w: startTime is required", ErrToolValidation)
	}
	return nil
}
