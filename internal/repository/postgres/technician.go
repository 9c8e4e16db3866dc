package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// TechnicianRepository implements repository.TechnicianRepository for PostgreSQL.
type TechnicianRepository struct {
	db sqlExecutor
}

// NewTechnicianRepository creates a new TechnicianRepository.
func NewTechnicianRepository(db sqlExecutor) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

func (r *TechnicianRepository) scan(row *sql.Row) (*entity.Technician, error) {
	tech := &entity.Technician{}
	var hoursJSON, exceptionsJSON []byte

	err := row.Scan(
		&tech.ID,
		&tech.VanID,
		&tech.HomeLat,
		&tech.HomeLng,
		&hoursJSON,
		&exceptionsJSON,
		&tech.CurrentLat,
		&tech.CurrentLng,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Technician", ResourceID: ""}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan technician: %w", err)
	}

	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &tech.DefaultHours); err != nil {
			return nil, fmt.Errorf("failed to unmarshal default_hours: %w", err)
		}
	}
	if len(exceptionsJSON) > 0 {
		if err := json.Unmarshal(exceptionsJSON, &tech.Exceptions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exceptions: %w", err)
		}
	}

	return tech, nil
}

// GetByID retrieves a technician by ID, including default hours and
// exceptions.
func (r *TechnicianRepository) GetByID(ctx context.Context, id entity.TechnicianID) (*entity.Technician, error) {
	query := `
		SELECT id, van_id, home_lat, home_lng, default_hours, exceptions, current_lat, current_lng
		FROM technicians
		WHERE id = $1 AND active = true
	`
	tech, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if nf, ok := err.(*repository.NotFoundError); ok {
		nf.ResourceID = id.String()
		return nil, nf
	}
	return tech, err
}

// ListActive returns every technician eligible for scheduling.
func (r *TechnicianRepository) ListActive(ctx context.Context) ([]*entity.Technician, error) {
	query := `
		SELECT id, van_id, home_lat, home_lng, default_hours, exceptions, current_lat, current_lng
		FROM technicians
		WHERE active = true
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()

	var technicians []*entity.Technician
	for rows.Next() {
		tech := &entity.Technician{}
		var hoursJSON, exceptionsJSON []byte
		if err := rows.Scan(
			&tech.ID, &tech.VanID, &tech.HomeLat, &tech.HomeLng,
			&hoursJSON, &exceptionsJSON, &tech.CurrentLat, &tech.CurrentLng,
		); err != nil {
			return nil, fmt.Errorf("failed to scan technician row: %w", err)
		}
		if len(hoursJSON) > 0 {
			if err := json.Unmarshal(hoursJSON, &tech.DefaultHours); err != nil {
				return nil, fmt.Errorf("failed to unmarshal default_hours: %w", err)
			}
		}
		if len(exceptionsJSON) > 0 {
			if err := json.Unmarshal(exceptionsJSON, &tech.Exceptions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal exceptions: %w", err)
			}
		}
		technicians = append(technicians, tech)
	}
	return technicians, rows.Err()
}

// UpdateCurrentLocation records the technician's last observed position.
func (r *TechnicianRepository) UpdateCurrentLocation(ctx context.Context, id entity.TechnicianID, lat, lng float64, observedAt time.Time) error {
	query := `
		UPDATE technicians
		SET current_lat = $2, current_lng = $3, location_observed_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, lat, lng, observedAt)
	if err != nil {
		return fmt.Errorf("failed to update technician location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "Technician", ResourceID: id.String()}
	}
	return nil
}

// Count returns the number of active technicians.
func (r *TechnicianRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM technicians WHERE active = true`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count technicians: %w", err)
	}
	return count, nil
}
