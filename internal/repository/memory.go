package repository

import (
	"context"
	"sync"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
)

// MemoryRepositoryManager is an in-memory RepositoryManager used by tests and
// by local development without a database.
type MemoryRepositoryManager struct {
	tenants      *MemoryTenantRepository
	calls        *MemoryCallRepository
	appointments *MemoryAppointmentRepository
}

// NewMemoryRepositoryManager creates an empty in-memory repository manager.
func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		tenants:      NewMemoryTenantRepository(),
		calls:        NewMemoryCallRepository(),
		appointments: NewMemoryAppointmentRepository(),
	}
}

func (m *MemoryRepositoryManager) Tenant() TenantRepository           { return m.tenants }
func (m *MemoryRepositoryManager) Call() CallRepository               { return m.calls }
func (m *MemoryRepositoryManager) Appointment() AppointmentRepository { return m.appointments }

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error { return nil }
func (m *MemoryRepositoryManager) Close() error                   { return nil }

// MemoryTenantRepository is an in-memory TenantRepository.
type MemoryTenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]domain.Tenant
	routes  map[string]string
}

func NewMemoryTenantRepository() *MemoryTenantRepository {
	return &MemoryTenantRepository{
		tenants: make(map[string]domain.Tenant),
		routes:  make(map[string]string),
	}
}

func (r *MemoryTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	r.tenants[tenant.ID] = *tenant
	return nil
}

func (r *MemoryTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenant, ok := r.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tenant, nil
}

func (r *MemoryTenantRepository) ResolveRoute(ctx context.Context, phoneNumber string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenantID, ok := r.routes[phoneNumber]
	if !ok {
		return "", ErrNotFound
	}
	return tenantID, nil
}

func (r *MemoryTenantRepository) PutRoute(ctx context.Context, phoneNumber, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[phoneNumber] = tenantID
	return nil
}

// MemoryCallRepository is an in-memory CallRepository.
type MemoryCallRepository struct {
	mu    sync.RWMutex
	calls map[string]domain.Call
}

func NewMemoryCallRepository() *MemoryCallRepository {
	return &MemoryCallRepository{calls: make(map[string]domain.Call)}
}

func (r *MemoryCallRepository) Upsert(ctx context.Context, req *domain.UpsertCallRequest) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	call, ok := r.calls[req.CallSID]
	if !ok {
		call = domain.Call{
			CallSID:   req.CallSID,
			TenantID:  req.TenantID,
			From:      req.From,
			To:        req.To,
			Status:    req.Status,
			Plan:      req.Plan,
			Source:    req.Source,
			StartedAt: now,
		}
	} else {
		if req.Status != "" {
			call.Status = req.Status
		}
		if req.From != "" {
			call.From = req.From
		}
		if req.To != "" {
			call.To = req.To
		}
		if req.Plan != "" {
			call.Plan = req.Plan
		}
	}
	call.UpdatedAt = now
	r.calls[req.CallSID] = call
	return &call, nil
}

func (r *MemoryCallRepository) GetBySID(ctx context.Context, callSID string) (*domain.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	call, ok := r.calls[callSID]
	if !ok {
		return nil, ErrNotFound
	}
	return &call, nil
}

// MemoryAppointmentRepository is an in-memory AppointmentRepository.
type MemoryAppointmentRepository struct {
	mu           sync.RWMutex
	appointments []domain.Appointment
}

func NewMemoryAppointmentRepository() *MemoryAppointmentRepository {
	return &MemoryAppointmentRepository{}
}

func (r *MemoryAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments = append(r.appointments, *appt)
	return nil
}

func (r *MemoryAppointmentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.appointments {
		if r.appointments[i].TenantID == tenantID && r.appointments[i].ID == id {
			appt := r.appointments[i]
			return &appt, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAppointmentRepository) ListByCall(ctx context.Context, tenantID, callSID string) ([]*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Appointment
	for i := range r.appointments {
		if r.appointments[i].TenantID == tenantID && r.appointments[i].CallSID == callSID {
			appt := r.appointments[i]
			out = append(out, &appt)
		}
	}
	return out, nil
}

// Count returns the total number of stored appointments. Test helper.
func (r *MemoryAppointmentRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.appointments)
}
