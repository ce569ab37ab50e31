package service

import "errors"

var (
	// ErrInvalidCourierID is returned when courier ID is empty.
	ErrInvalidCourierID = errors.New("invalid courier id")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidBranchID is returned when branch ID is empty.
	ErrInvalidBranchID = errors.New("invalid branch id")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidOrderType is returned when the order type is unknown.
	ErrInvalidOrderType = errors.New("invalid order type")

	// ErrInvalidStatus is returned when the target status is unknown.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrEmptyOrder is returned when an order is created with no items.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrOrderTerminal is returned when an order can no longer change.
	ErrOrderTerminal = errors.New("order in terminal state")

	// ErrNotDeliveryOrder is returned when assigning a courier to a
	// pickup or dine-in order.
	ErrNotDeliveryOrder = errors.New("order is not a delivery order")

	// ErrCourierInactive is returned when the courier is deactivated.
	ErrCourierInactive = errors.New("courier is not active")

	// ErrCourierBusy is returned when the courier is already bound to a
	// different active order.
	ErrCourierBusy = errors.New("courier bound to another active order")

	// ErrCourierNotBound is returned when a delivery transition needs a
	// bound courier and the order has none.
	ErrCourierNotBound = errors.New("no courier bound to order")

	// ErrInvalidTransition is returned when the target status is not a
	// legal successor of the current one.
	ErrInvalidTransition = errors.New("illegal status transition")

	// ErrActorNotAllowed is returned when the acting role (or a courier
	// other than the bound one) may not perform the transition.
	ErrActorNotAllowed = errors.New("actor not allowed to perform transition")

	// ErrAssignmentConflict is returned when a concurrent assign or
	// transition won the race. Callers should refetch and retry.
	ErrAssignmentConflict = errors.New("lost concurrent update race")

	// ErrStoreUnavailable is returned when the live-state store cannot
	// be reached. Callers may retry with backoff.
	ErrStoreUnavailable = errors.New("state store unavailable")
)
