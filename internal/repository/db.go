package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TenantRepository defines tenant and phone-route operations.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	ResolveRoute(ctx context.Context, phoneNumber string) (string, error)
	PutRoute(ctx context.Context, phoneNumber, tenantID string) error
}

// CallRepository defines call record operations. Writes use merge semantics:
// one record per call attempt, updated as the call progresses.
type CallRepository interface {
	Upsert(ctx context.Context, req *domain.UpsertCallRequest) (*domain.Call, error)
	GetBySID(ctx context.Context, callSID string) (*domain.Call, error)
}

// AppointmentRepository defines appointment persistence. Create assigns a
// generated identifier and server timestamps.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Appointment, error)
	ListByCall(ctx context.Context, tenantID, callSID string) ([]*domain.Appointment, error)
}

// RepositoryManager combines all repositories.
type RepositoryManager interface {
	Tenant() TenantRepository
	Call() CallRepository
	Appointment() AppointmentRepository

	Ping(ctx context.Context) error
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM.
type GormRepositoryManager struct {
	db              *gorm.DB
	tenantRepo      *GormTenantRepository
	callRepo        *GormCallRepository
	appointmentRepo *GormAppointmentRepository
}

// NewGormRepositoryManager creates a repository manager on an open connection.
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:              db,
		tenantRepo:      NewGormTenantRepository(db),
		callRepo:        NewGormCallRepository(db),
		appointmentRepo: NewGormAppointmentRepository(db),
	}
}

// NewRepositoryManager opens a Postgres connection from the DSN and runs
// migrations. Returns an error if the DSN is empty; callers decide whether
// to run degraded (tool calls then fail with a storage error, not a crash).
func NewRepositoryManager(dsn string) (RepositoryManager, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not configured")
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.New(logger.NewGORMWriter(), gormlogger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      gormlogger.Error,
		}),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewGormRepositoryManager(db), nil
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Tenant{},
		&domain.PhoneRoute{},
		&domain.Call{},
		&domain.Appointment{},
	)
}

func (m *GormRepositoryManager) Tenant() TenantRepository           { return m.tenantRepo }
func (m *GormRepositoryManager) Call() CallRepository               { return m.callRepo }
func (m *GormRepositoryManager) Appointment() AppointmentRepository { return m.appointmentRepo }

// Ping checks database connectivity.
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
