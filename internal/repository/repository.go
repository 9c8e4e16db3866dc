package repository

import (
	"context"
	"time"

	"github.com/fieldops/replanner/internal/entity"
)

// Database provides access to all repositories
type Database interface {
	// Transaction management
	BeginTx(ctx context.Context) (Transaction, error)

	// Repository accessors
	TechnicianRepository() TechnicianRepository
	VanRepository() VanRepository
	JobRepository() JobRepository
	OrderRepository() OrderRepository
	AddressRepository() AddressRepository
	ServiceRepository() ServiceRepository
	YMMRepository() YMMRepository
	EquipmentRepository() EquipmentRepository
	JobSchedulingStateRepository() JobSchedulingStateRepository
	RunRecordRepository() RunRecordRepository

	// Connection management
	Close() error
	Health(ctx context.Context) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error

	TechnicianRepository() TechnicianRepository
	VanRepository() VanRepository
	JobRepository() JobRepository
	OrderRepository() OrderRepository
	AddressRepository() AddressRepository
	ServiceRepository() ServiceRepository
	YMMRepository() YMMRepository
	EquipmentRepository() EquipmentRepository
	JobSchedulingStateRepository() JobSchedulingStateRepository
	RunRecordRepository() RunRecordRepository
}

// TechnicianRepository defines data access operations for technicians,
// including their default hours, exceptions and last known location.
type TechnicianRepository interface {
	GetByID(ctx context.Context, id entity.TechnicianID) (*entity.Technician, error)
	ListActive(ctx context.Context) ([]*entity.Technician, error)
	UpdateCurrentLocation(ctx context.Context, id entity.TechnicianID, lat, lng float64, observedAt time.Time) error
	Count(ctx context.Context) (int64, error)
}

// VanRepository defines data access operations for vans and their
// onboard equipment inventory.
type VanRepository interface {
	GetByID(ctx context.Context, id entity.VanID) (*entity.Van, error)
	ListByIDs(ctx context.Context, ids []entity.VanID) ([]*entity.Van, error)
	UpdateDeviceLocation(ctx context.Context, id entity.VanID, lat, lng float64, observedAt time.Time) error
	Count(ctx context.Context) (int64, error)
}

// JobRepository defines data access operations for jobs.
type JobRepository interface {
	GetByID(ctx context.Context, id entity.JobID) (*entity.Job, error)
	ListSchedulableForDate(ctx context.Context, date time.Time) ([]*entity.Job, error)
	ListLockedForDate(ctx context.Context, date time.Time) ([]*entity.Job, error)
	ListFixedTime(ctx context.Context) ([]*entity.Job, error)
	UpdateSchedule(ctx context.Context, jobID entity.JobID, technicianID entity.TechnicianID, scheduledTime time.Time) error
	MarkPendingReview(ctx context.Context, jobID entity.JobID, reason entity.FailureReason) error
	Count(ctx context.Context) (int64, error)
}

// OrderRepository defines data access operations for orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id entity.OrderID) (*entity.Order, error)
	ListByIDs(ctx context.Context, ids []entity.OrderID) ([]*entity.Order, error)
	Count(ctx context.Context) (int64, error)
}

// AddressRepository resolves the geocoded coordinates backing a
// schedulable item's location.
type AddressRepository interface {
	GetByID(ctx context.Context, id entity.AddressID) (*entity.Address, error)
	ListByIDs(ctx context.Context, ids []entity.AddressID) ([]*entity.Address, error)
	Count(ctx context.Context) (int64, error)
}

// ServiceRepository defines data access operations for the service
// catalog.
type ServiceRepository interface {
	GetByID(ctx context.Context, id entity.ServiceID) (*entity.Service, error)
	Count(ctx context.Context) (int64, error)
}

// YMMRepository resolves vehicle year/make/model identities and the
// equipment-requirements matrix keyed on them.
type YMMRepository interface {
	// FindByMakeModel matches case-insensitively. Returns (0, false) if
	// no row matches.
	FindByMakeModel(ctx context.Context, year int, make_, model string) (int64, bool, error)
	// RequiredModels returns the equipment models required for a
	// (ymmID, serviceID) pair from the unified requirements table.
	RequiredModels(ctx context.Context, ymmID int64, serviceID entity.ServiceID) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// EquipmentRepository provides the generic-category fallback probe and
// the service-category lookup used by equipment resolution.
type EquipmentRepository interface {
	ModelExistsNamed(ctx context.Context, name string) (bool, error)
	ServiceCategory(ctx context.Context, serviceID entity.ServiceID) (entity.ServiceCategory, bool, error)
	Count(ctx context.Context) (int64, error)
}

// JobSchedulingStateRepository persists the attempt history and
// terminal status backing the failure-escalation rule.
type JobSchedulingStateRepository interface {
	GetByJobID(ctx context.Context, jobID entity.JobID) (*entity.JobSchedulingState, error)
	Upsert(ctx context.Context, state *entity.JobSchedulingState) error
	Count(ctx context.Context) (int64, error)
}

// RunRecordRepository persists the audit trail of orchestrator runs.
type RunRecordRepository interface {
	Create(ctx context.Context, record *entity.RunRecord) error
	Update(ctx context.Context, record *entity.RunRecord) error
	GetByID(ctx context.Context, id entity.RunID) (*entity.RunRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.RunRecord, error)
	Count(ctx context.Context) (int64, error)
}

// NotFoundError represents a record not found error
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

// Error implements the error interface for NotFoundError
func (e *NotFoundError) Error() string {
	return "not found: " + e.ResourceType + " " + e.ResourceID
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
	Field   string
}

// Error implements the error interface for ValidationError
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
