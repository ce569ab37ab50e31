package repository

import (
	"context"

	"dispatch/internal/domain"
)

// CourierRepository defines the persistence operations for couriers.
type CourierRepository interface {
	// Create adds a new courier.
	Create(ctx context.Context, courier *domain.Courier) error

	// GetByID retrieves a courier by ID.
	GetByID(ctx context.Context, id string) (*domain.Courier, error)

	// GetByBranch retrieves all active couriers of a branch.
	GetByBranch(ctx context.Context, branchID string) ([]*domain.Courier, error)

	// GetAll retrieves all couriers.
	GetAll(ctx context.Context) ([]*domain.Courier, error)

	// UpdateOnline flips the online flag of a courier.
	UpdateOnline(ctx context.Context, id string, online bool) error

	// UpdateAvailability flips the availability flag of a courier.
	UpdateAvailability(ctx context.Context, id string, available bool) error

	// Deactivate soft-deletes a courier; couriers are never hard-deleted.
	Deactivate(ctx context.Context, id string) error
}
