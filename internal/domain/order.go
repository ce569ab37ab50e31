package domain

import "time"

// OrderStatus represents the current status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusPreparing  OrderStatus = "PREPARING"
	OrderStatusReady      OrderStatus = "READY"
	OrderStatusPickedUp   OrderStatus = "PICKED_UP"
	OrderStatusOnDelivery OrderStatus = "ON_DELIVERY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// OrderType represents how the customer receives the order.
type OrderType string

const (
	OrderTypeDelivery OrderType = "DELIVERY"
	OrderTypePickup   OrderType = "PICKUP"
	OrderTypeDineIn   OrderType = "DINE_IN"
)

// ActorRole identifies who is requesting a status change.
type ActorRole string

const (
	RoleAdmin    ActorRole = "ADMIN"
	RoleKitchen  ActorRole = "KITCHEN"
	RoleCourier  ActorRole = "COURIER"
	RoleCustomer ActorRole = "CUSTOMER"
)

// OrderItem is a single line item of an order.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
}

// Order represents a customer order in the system.
// CourierID is empty while no courier is bound. Version is the
// optimistic concurrency token; every persisted update increments it.
type Order struct {
	ID              string
	CustomerID      string
	BranchID        string
	Items           []OrderItem
	TotalAmount     float64
	Type            OrderType
	Status          OrderStatus
	CourierID       string
	AssignedAt      time.Time
	CourierLocation GeoPoint
	DeliveredAt     time.Time
	CancelledAt     time.Time
	CancelReason    string
	Version         int64
	CreatedAt       time.Time
}

// IsTerminal reports whether no further transition is allowed from the
// status except an explicit refund.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// IsDeliverySubstate reports whether the status is part of the courier
// delivery leg.
func (s OrderStatus) IsDeliverySubstate() bool {
	switch s {
	case OrderStatusPickedUp, OrderStatusOnDelivery, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// transitions is the authoritative legal-successor table. All
// producers and consumers of order status go through it; there is no
// other transition vocabulary in the system.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusPickedUp, OrderStatusOnDelivery, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusPickedUp:   {OrderStatusOnDelivery, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusOnDelivery: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCancelled:  {OrderStatusRefunded},
	OrderStatusCompleted:  nil,
	OrderStatusRefunded:   nil,
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidNextStatuses returns the legal successors of a status.
func ValidNextStatuses(from OrderStatus) []OrderStatus {
	return transitions[from]
}

// RoleAllowed reports whether the actor role may perform the from → to
// transition. Kitchen staff move orders through preparation; only the
// bound courier (or an admin) moves through the delivery leg; refunds
// are admin-only. The courier identity check against the bound courier
// happens in the service layer.
func RoleAllowed(from, to OrderStatus, role ActorRole) bool {
	if role == RoleAdmin {
		return true
	}

	switch to {
	case OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady:
		return role == RoleKitchen
	case OrderStatusPickedUp, OrderStatusOnDelivery, OrderStatusDelivered:
		return role == RoleCourier
	case OrderStatusCompleted:
		// Kitchen closes out pickup/dine-in orders at the counter.
		return from == OrderStatusReady && role == RoleKitchen
	case OrderStatusCancelled:
		// Customers may back out before the kitchen starts.
		return role == RoleCustomer && (from == OrderStatusPending || from == OrderStatusConfirmed)
	case OrderStatusRefunded:
		return false
	default:
		return false
	}
}
