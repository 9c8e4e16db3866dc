package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// OrderRepository implements repository.OrderRepository for PostgreSQL.
type OrderRepository struct {
	db sqlExecutor
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db sqlExecutor) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, customer_id, address_id, ymm_id, earliest_available_time`

// GetByID retrieves a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id entity.OrderID) (*entity.Order, error) {
	order := &entity.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.CustomerID, &order.AddressID, &order.YMMID, &order.EarliestAvailableTime,
	)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Order", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListByIDs batch-fetches orders, preventing one round trip per job.
func (r *OrderRepository) ListByIDs(ctx context.Context, ids []entity.OrderID) ([]*entity.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.Order
	for rows.Next() {
		order := &entity.Order{}
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.AddressID, &order.YMMID, &order.EarliestAvailableTime); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Count returns the total number of orders on file.
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}
