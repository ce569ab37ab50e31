package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// NewOrderRepositoryWithTx creates an order repository using a transaction.
func NewOrderRepositoryWithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `id, customer_id, branch_id, items, total_amount, order_type, status, courier_id, assigned_at, courier_lat, courier_lng, courier_location_at, delivered_at, cancelled_at, cancel_reason, version, created_at`

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		order.BranchID,
		items,
		order.TotalAmount,
		order.Type,
		order.Status,
		nullString(order.CourierID),
		nullTime(order.AssignedAt),
		nullFloat(order.CourierLocation.Lat, !order.CourierLocation.RecordedAt.IsZero()),
		nullFloat(order.CourierLocation.Lng, !order.CourierLocation.RecordedAt.IsZero()),
		nullTime(order.CourierLocation.RecordedAt),
		nullTime(order.DeliveredAt),
		nullTime(order.CancelledAt),
		nullString(order.CancelReason),
		order.Version,
		order.CreatedAt,
	)
	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetAll retrieves recent orders, newest first.
func (r *OrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// GetActiveByCourierID retrieves the non-terminal order bound to the courier.
func (r *OrderRepository) GetActiveByCourierID(ctx context.Context, courierID string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders
		WHERE courier_id = $1 AND status NOT IN ($2, $3, $4, $5)
		LIMIT 1
	`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, courierID,
		domain.OrderStatusDelivered,
		domain.OrderStatusCompleted,
		domain.OrderStatusCancelled,
		domain.OrderStatusRefunded,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

// Update persists the order guarded by its optimistic version. The
// caller's copy gets the incremented version on success.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, courier_id = $2, assigned_at = $3, courier_lat = $4, courier_lng = $5, courier_location_at = $6, delivered_at = $7, cancelled_at = $8, cancel_reason = $9, version = version + 1
		WHERE id = $10 AND version = $11
	`

	hasLocation := !order.CourierLocation.RecordedAt.IsZero()

	result, err := r.q.ExecContext(ctx, query,
		order.Status,
		nullString(order.CourierID),
		nullTime(order.AssignedAt),
		nullFloat(order.CourierLocation.Lat, hasLocation),
		nullFloat(order.CourierLocation.Lng, hasLocation),
		nullTime(order.CourierLocation.RecordedAt),
		nullTime(order.DeliveredAt),
		nullTime(order.CancelledAt),
		nullString(order.CancelReason),
		order.ID,
		order.Version,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Callers load the order right before updating, so a zero-row
		// match means the version moved, not a missing row.
		return repository.ErrVersionConflict
	}

	order.Version++
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	var courierID, cancelReason sql.NullString
	var assignedAt, locationAt, deliveredAt, cancelledAt sql.NullTime
	var courierLat, courierLng sql.NullFloat64

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.BranchID,
		&items,
		&order.TotalAmount,
		&order.Type,
		&order.Status,
		&courierID,
		&assignedAt,
		&courierLat,
		&courierLng,
		&locationAt,
		&deliveredAt,
		&cancelledAt,
		&cancelReason,
		&order.Version,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, err
		}
	}
	if courierID.Valid {
		order.CourierID = courierID.String
	}
	if assignedAt.Valid {
		order.AssignedAt = assignedAt.Time
	}
	if locationAt.Valid {
		order.CourierLocation = domain.GeoPoint{
			Lat:        courierLat.Float64,
			Lng:        courierLng.Float64,
			RecordedAt: locationAt.Time,
		}
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	if cancelledAt.Valid {
		order.CancelledAt = cancelledAt.Time
	}
	if cancelReason.Valid {
		order.CancelReason = cancelReason.String
	}

	return &order, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullFloat(f float64, valid bool) sql.NullFloat64 {
	if !valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: valid}
}
