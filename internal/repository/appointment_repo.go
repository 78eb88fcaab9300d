package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"gorm.io/gorm"
)

// GormAppointmentRepository implements AppointmentRepository using GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a new GORM appointment repository.
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// Create persists a new appointment document.
func (r *GormAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	if err := r.db.WithContext(ctx).Create(appt).Error; err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant's appointment by ID.
func (r *GormAppointmentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.WithContext(ctx).First(&appt, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// ListByCall returns all appointments attributed to one call, oldest first.
func (r *GormAppointmentRepository) ListByCall(ctx context.Context, tenantID, callSID string) ([]*domain.Appointment, error) {
	var appts []*domain.Appointment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND call_sid = ?", tenantID, callSID).
		Order("created_at asc").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}
