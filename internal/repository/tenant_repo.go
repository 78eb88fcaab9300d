package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// GormTenantRepository implements TenantRepository using GORM.
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GORM tenant repository.
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// Create creates a new tenant.
func (r *GormTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID.
func (r *GormTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// ResolveRoute looks up the tenant owning a shared inbound number.
func (r *GormTenantRepository) ResolveRoute(ctx context.Context, phoneNumber string) (string, error) {
	var route domain.PhoneRoute
	if err := r.db.WithContext(ctx).First(&route, "phone_number = ?", phoneNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve phone route: %w", err)
	}
	return route.TenantID, nil
}

// PutRoute maps a shared inbound number to a tenant, replacing any existing mapping.
func (r *GormTenantRepository) PutRoute(ctx context.Context, phoneNumber, tenantID string) error {
	route := &domain.PhoneRoute{PhoneNumber: phoneNumber, TenantID: tenantID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id"}),
	}).Create(route).Error
	if err != nil {
		return fmt.Errorf("failed to put phone route: %w", err)
	}
	return nil
}
