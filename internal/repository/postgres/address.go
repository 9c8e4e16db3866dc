package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// AddressRepository implements repository.AddressRepository for PostgreSQL.
type AddressRepository struct {
	db sqlExecutor
}

// NewAddressRepository creates a new AddressRepository.
func NewAddressRepository(db sqlExecutor) *AddressRepository {
	return &AddressRepository{db: db}
}

const addressColumns = `id, street, lat, lng`

// GetByID retrieves a single address.
func (r *AddressRepository) GetByID(ctx context.Context, id entity.AddressID) (*entity.Address, error) {
	addr := &entity.Address{}
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&addr.ID, &addr.Street, &addr.Lat, &addr.Lng)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Address", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return addr, nil
}

// ListByIDs batch-fetches addresses, one round trip for an entire payload
// assembly instead of one per schedulable item.
func (r *AddressRepository) ListByIDs(ctx context.Context, ids []entity.AddressID) ([]*entity.Address, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*entity.Address
	for rows.Next() {
		addr := &entity.Address{}
		if err := rows.Scan(&addr.ID, &addr.Street, &addr.Lat, &addr.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan address row: %w", err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}

// Count returns the total number of addresses on file.
func (r *AddressRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM addresses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}
	return count, nil
}
