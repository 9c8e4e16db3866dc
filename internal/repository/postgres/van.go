package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// VanRepository implements repository.VanRepository for PostgreSQL.
type VanRepository struct {
	db sqlExecutor
}

// NewVanRepository creates a new VanRepository.
func NewVanRepository(db sqlExecutor) *VanRepository {
	return &VanRepository{db: db}
}

// GetByID retrieves a van and its equipment inventory.
func (r *VanRepository) GetByID(ctx context.Context, id entity.VanID) (*entity.Van, error) {
	van := &entity.Van{}
	query := `
		SELECT id, equipment, device_id, current_lat, current_lng, location_observed_at
		FROM vans
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&van.ID, pq.Array(&van.Equipment), &van.DeviceID,
		&van.CurrentLat, &van.CurrentLng, &van.LocationTime,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Van", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get van: %w", err)
	}
	return van, nil
}

// ListByIDs bulk-fetches vans, avoiding one round trip per technician.
func (r *VanRepository) ListByIDs(ctx context.Context, ids []entity.VanID) ([]*entity.Van, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, equipment, device_id, current_lat, current_lng, location_observed_at
		FROM vans
		WHERE id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list vans: %w", err)
	}
	defer rows.Close()

	var vans []*entity.Van
	for rows.Next() {
		van := &entity.Van{}
		if err := rows.Scan(
			&van.ID, pq.Array(&van.Equipment), &van.DeviceID,
			&van.CurrentLat, &van.CurrentLng, &van.LocationTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan van row: %w", err)
		}
		vans = append(vans, van)
	}
	return vans, rows.Err()
}

// UpdateDeviceLocation records the GPS-device-reported position for a van.
func (r *VanRepository) UpdateDeviceLocation(ctx context.Context, id entity.VanID, lat, lng float64, observedAt time.Time) error {
	query := `
		UPDATE vans
		SET current_lat = $2, current_lng = $3, location_observed_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, lat, lng, observedAt)
	if err != nil {
		return fmt.Errorf("failed to update van location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "Van", ResourceID: id.String()}
	}
	return nil
}

// Count returns the number of vans on file.
func (r *VanRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vans: %w", err)
	}
	return count, nil
}
