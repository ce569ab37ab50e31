package repository

import (
	"context"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
type OrderRepository interface {
	// Create persists a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetAll retrieves recent orders, newest first.
	GetAll(ctx context.Context) ([]*domain.Order, error)

	// GetActiveByCourierID retrieves the non-terminal order bound to the
	// courier, or nil if the courier has none.
	GetActiveByCourierID(ctx context.Context, courierID string) (*domain.Order, error)

	// Update persists the order if its stored version still matches
	// order.Version, incrementing the version on success. A lost race
	// returns ErrVersionConflict and leaves the row unchanged.
	Update(ctx context.Context, order *domain.Order) error
}
