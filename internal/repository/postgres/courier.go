package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// CourierRepository is a PostgreSQL implementation of repository.CourierRepository.
type CourierRepository struct {
	q Querier
}

// NewCourierRepository creates a new PostgreSQL courier repository.
func NewCourierRepository(db *sql.DB) *CourierRepository {
	return &CourierRepository{q: db}
}

// NewCourierRepositoryWithTx creates a courier repository using a transaction.
func NewCourierRepositoryWithTx(tx *sql.Tx) *CourierRepository {
	return &CourierRepository{q: tx}
}

const courierColumns = `id, branch_id, COALESCE(name, ''), COALESCE(phone, ''), vehicle_type, rating, is_online, is_available, is_active`

// Create adds a new courier.
func (r *CourierRepository) Create(ctx context.Context, courier *domain.Courier) error {
	query := `
		INSERT INTO couriers (id, branch_id, name, phone, vehicle_type, rating, is_online, is_available, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		courier.ID,
		courier.BranchID,
		courier.Name,
		courier.Phone,
		courier.VehicleType,
		courier.Rating,
		courier.IsOnline,
		courier.IsAvailable,
		courier.IsActive,
	)
	return err
}

// GetByID retrieves a courier by ID.
func (r *CourierRepository) GetByID(ctx context.Context, id string) (*domain.Courier, error) {
	query := `SELECT ` + courierColumns + ` FROM couriers WHERE id = $1`

	courier, err := scanCourier(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return courier, nil
}

// GetByBranch retrieves all active couriers of a branch.
func (r *CourierRepository) GetByBranch(ctx context.Context, branchID string) ([]*domain.Courier, error) {
	query := `SELECT ` + courierColumns + ` FROM couriers WHERE branch_id = $1 AND is_active ORDER BY id`
	return r.queryCouriers(ctx, query, branchID)
}

// GetAll retrieves all couriers.
func (r *CourierRepository) GetAll(ctx context.Context) ([]*domain.Courier, error) {
	query := `SELECT ` + courierColumns + ` FROM couriers ORDER BY id`
	return r.queryCouriers(ctx, query)
}

// UpdateOnline flips the online flag of a courier.
func (r *CourierRepository) UpdateOnline(ctx context.Context, id string, online bool) error {
	return r.updateFlag(ctx, `UPDATE couriers SET is_online = $1 WHERE id = $2`, online, id)
}

// UpdateAvailability flips the availability flag of a courier.
func (r *CourierRepository) UpdateAvailability(ctx context.Context, id string, available bool) error {
	return r.updateFlag(ctx, `UPDATE couriers SET is_available = $1 WHERE id = $2`, available, id)
}

// Deactivate soft-deletes a courier.
func (r *CourierRepository) Deactivate(ctx context.Context, id string) error {
	return r.updateFlag(ctx, `UPDATE couriers SET is_active = $1 WHERE id = $2`, false, id)
}

func (r *CourierRepository) updateFlag(ctx context.Context, query string, value bool, id string) error {
	result, err := r.q.ExecContext(ctx, query, value, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *CourierRepository) queryCouriers(ctx context.Context, query string, args ...any) ([]*domain.Courier, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var couriers []*domain.Courier
	for rows.Next() {
		courier, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		couriers = append(couriers, courier)
	}
	return couriers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourier(row rowScanner) (*domain.Courier, error) {
	var courier domain.Courier
	err := row.Scan(
		&courier.ID,
		&courier.BranchID,
		&courier.Name,
		&courier.Phone,
		&courier.VehicleType,
		&courier.Rating,
		&courier.IsOnline,
		&courier.IsAvailable,
		&courier.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return &courier, nil
}
