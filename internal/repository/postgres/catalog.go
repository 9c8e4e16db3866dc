package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// ServiceRepository implements repository.ServiceRepository for PostgreSQL.
type ServiceRepository struct {
	db sqlExecutor
}

// NewServiceRepository creates a new ServiceRepository.
func NewServiceRepository(db sqlExecutor) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// GetByID retrieves a single service definition.
func (r *ServiceRepository) GetByID(ctx context.Context, id entity.ServiceID) (*entity.Service, error) {
	svc := &entity.Service{}
	var category string
	query := `SELECT id, name, category FROM services WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&svc.ID, &svc.Name, &category)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Service", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	svc.Category = entity.ServiceCategory(category)
	return svc, nil
}

// Count returns the number of services in the catalog.
func (r *ServiceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count services: %w", err)
	}
	return count, nil
}

// YMMRepository implements repository.YMMRepository for PostgreSQL.
type YMMRepository struct {
	db sqlExecutor
}

// NewYMMRepository creates a new YMMRepository.
func NewYMMRepository(db sqlExecutor) *YMMRepository {
	return &YMMRepository{db: db}
}

// FindByMakeModel resolves a vehicle's ymm_id, matching make and model
// case-insensitively.
func (r *YMMRepository) FindByMakeModel(ctx context.Context, year int, make_, model string) (int64, bool, error) {
	var id int64
	query := `
		SELECT id FROM ymm
		WHERE year = $1 AND lower(make) = lower($2) AND lower(model) = lower($3)
	`
	err := r.db.QueryRowContext(ctx, query, year, make_, model).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve ymm: %w", err)
	}
	return id, true, nil
}

// RequiredModels returns the equipment models required for a
// (ymmID, serviceID) pair from the unified requirements table.
func (r *YMMRepository) RequiredModels(ctx context.Context, ymmID int64, serviceID entity.ServiceID) ([]string, error) {
	var models []string
	query := `
		SELECT equipment_models FROM equipment_requirements
		WHERE ymm_id = $1 AND service_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, ymmID, serviceID).Scan(pq.Array(&models))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up equipment requirements: %w", err)
	}
	return models, nil
}

// Count returns the number of vehicle identities on file.
func (r *YMMRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ymm`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ymm rows: %w", err)
	}
	return count, nil
}

// EquipmentRepository implements repository.EquipmentRepository for PostgreSQL.
type EquipmentRepository struct {
	db sqlExecutor
}

// NewEquipmentRepository creates a new EquipmentRepository.
func NewEquipmentRepository(db sqlExecutor) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// ModelExistsNamed probes the equipment_models table for an exact,
// case-insensitive identifier match, used by the generic-category
// fallback.
func (r *EquipmentRepository) ModelExistsNamed(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM equipment_models WHERE lower(model) = lower($1))`
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to probe equipment model: %w", err)
	}
	return exists, nil
}

// ServiceCategory returns the category of a service.
func (r *EquipmentRepository) ServiceCategory(ctx context.Context, serviceID entity.ServiceID) (entity.ServiceCategory, bool, error) {
	var category string
	query := `SELECT category FROM services WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, serviceID).Scan(&category)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up service category: %w", err)
	}
	return entity.ServiceCategory(category), true, nil
}

// Count returns the number of distinct equipment models on file.
func (r *EquipmentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment_models`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count equipment models: %w", err)
	}
	return count, nil
}
