package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"gorm.io/gorm"
)

// GormCallRepository implements CallRepository using GORM.
type GormCallRepository struct {
	db *gorm.DB
}

// NewGormCallRepository creates a new GORM call repository.
func NewGormCallRepository(db *gorm.DB) *GormCallRepository {
	return &GormCallRepository{db: db}
}

// Upsert creates the call record on first sight and merges non-empty fields
// on subsequent writes. One record per call attempt.
func (r *GormCallRepository) Upsert(ctx context.Context, req *domain.UpsertCallRequest) (*domain.Call, error) {
	var call domain.Call
	err := r.db.WithContext(ctx).First(&call, "call_sid = ?", req.CallSID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		call = domain.Call{
			CallSID:  req.CallSID,
			TenantID: req.TenantID,
			From:     req.From,
			To:       req.To,
			Status:   req.Status,
			Plan:     req.Plan,
			Source:   req.Source,
		}
		if err := r.db.WithContext(ctx).Create(&call).Error; err != nil {
			return nil, fmt.Errorf("failed to create call record: %w", err)
		}
		return &call, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load call record: %w", err)
	}

	updates := map[string]interface{}{}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.From != "" {
		updates["from_number"] = req.From
	}
	if req.To != "" {
		updates["to_number"] = req.To
	}
	if req.Plan != "" {
		updates["plan"] = req.Plan
	}
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(&call).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to merge call record: %w", err)
		}
	}
	return &call, nil
}

// GetBySID retrieves a call record by provider SID.
func (r *GormCallRepository) GetBySID(ctx context.Context, callSID string) (*domain.Call, error) {
	var call domain.Call
	if err := r.db.WithContext(ctx).First(&call, "call_sid = ?", callSID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return &call, nil
}
