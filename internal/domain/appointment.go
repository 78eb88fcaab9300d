package domain

import (
	"time"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusPendingConfirmation AppointmentStatus = "pending_confirmation"
	AppointmentStatusConfirmed           AppointmentStatus = "confirmed"
	AppointmentStatusCompleted           AppointmentStatus = "completed"
	AppointmentStatusCancelled           AppointmentStatus = "cancelled"
)

// Appointment represents a booking captured during a call. Agent-created
// appointments always carry a non-empty TenantID, CallSID, Service and
// StartTime, with source "twilio_voice" and status "pending_confirmation".
type Appointment struct {
	ID        string            `json:"id" gorm:"type:varchar(64);primary_key"`
	TenantID  string            `json:"tenant_id" gorm:"type:varchar(255);not null;index"`
	CallSID   string            `json:"call_sid" gorm:"type:varchar(64);index"`
	Name      string            `json:"name" gorm:"type:varchar(255);not null"`
	Phone     string            `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Email     string            `json:"email,omitempty" gorm:"type:varchar(255)"`
	Service   string            `json:"service" gorm:"type:varchar(255);not null"`
	StartTime string            `json:"start_time" gorm:"type:varchar(64);not null"`
	EndTime   string            `json:"end_time,omitempty" gorm:"type:varchar(64)"`
	Timezone  string            `json:"timezone,omitempty" gorm:"type:varchar(64)"`
	Notes     string            `json:"notes,omitempty" gorm:"type:text"`
	Status    AppointmentStatus `json:"status" gorm:"type:varchar(32);not null"`
	Source    string            `json:"source" gorm:"type:varchar(32);not null"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Appointment
func (Appointment) TableName() string {
	return "appointments"
}

// CreateAppointmentInput is the caller-supplied portion of an appointment,
// as collected by the conversational agent. Attribution fields (tenant,
// call) are bound by the bridge, not the model.
type CreateAppointmentInput struct {
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Service   string `json:"service"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Notes     string `json:"notes,omitempty"`
}
