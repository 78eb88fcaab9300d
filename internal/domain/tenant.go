package domain

import (
	"time"
)

// Tenant represents a business account that owns calls, appointments and
// services. Created at onboarding, mutated by profile edits, never deleted
// by this service.
type Tenant struct {
	ID           string    `json:"id" gorm:"type:varchar(255);primary_key"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Plan         string    `json:"plan" gorm:"type:varchar(32);not null;default:'basic'"`
	Timezone     string    `json:"timezone" gorm:"type:varchar(64);not null"`
	CustomConfig JSONB     `json:"custom_config" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// PhoneRoute maps an inbound destination number (shared routing pool) to the
// tenant that owns calls placed to it.
type PhoneRoute struct {
	PhoneNumber string    `json:"phone_number" gorm:"type:varchar(32);primary_key"`
	TenantID    string    `json:"tenant_id" gorm:"type:varchar(255);not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for PhoneRoute
func (PhoneRoute) TableName() string {
	return "phone_routes"
}

// CreateTenantRequest represents the request to create a new tenant at onboarding.
type CreateTenantRequest struct {
	Name     string `json:"businessName" validate:"required"`
	Plan     string `json:"plan,omitempty"`
	Timezone string `json:"timezone" validate:"required"`
}
