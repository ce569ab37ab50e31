package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// OrderService owns order creation and the status state machine.
type OrderService struct {
	store       repository.Transactor
	lockStore   redis.LockStoreInterface
	cacheStore  *redis.CacheStore
	orderRepo   repository.OrderRepository
	courierRepo repository.CourierRepository
	notifier    Notifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	store repository.Transactor,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	orderRepo repository.OrderRepository,
	courierRepo repository.CourierRepository,
	notifier Notifier,
) *OrderService {
	return &OrderService{
		store:       store,
		lockStore:   lockStore,
		cacheStore:  cacheStore,
		orderRepo:   orderRepo,
		courierRepo: courierRepo,
		notifier:    notifier,
	}
}

// CreateOrderRequest contains the parameters for creating an order.
type CreateOrderRequest struct {
	CustomerID string
	BranchID   string
	Type       domain.OrderType
	Items      []domain.OrderItem
}

// CreateOrder persists a new pending order from checkout.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if req.CustomerID == "" {
		return nil, ErrInvalidCustomerID
	}
	if req.BranchID == "" {
		return nil, ErrInvalidBranchID
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	orderType, err := ValidateOrderType(string(req.Type))
	if err != nil {
		return nil, err
	}

	var total float64
	for _, item := range req.Items {
		total += item.Price * float64(item.Quantity)
	}

	order := &domain.Order{
		ID:          uuid.New().String(),
		CustomerID:  req.CustomerID,
		BranchID:    req.BranchID,
		Items:       req.Items,
		TotalAmount: total,
		Type:        orderType,
		Status:      domain.OrderStatusPending,
		CreatedAt:   time.Now(),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyOrderCreated(order)
	}

	return order, nil
}

// TransitionRequest contains the parameters for a status transition.
type TransitionRequest struct {
	OrderID   string
	Target    domain.OrderStatus
	ActorRole domain.ActorRole
	ActorID   string
	Reason    string           // stored on the order when the target is cancelled
	Location  *domain.GeoPoint // courier GPS at the moment of action
}

// Transition moves an order to the target status if the state machine,
// the actor's role and the bound-courier identity all allow it. Illegal
// requests leave the order untouched.
func (s *OrderService) Transition(ctx context.Context, req TransitionRequest) (*domain.Order, error) {
	if req.OrderID == "" {
		return nil, ErrInvalidOrderID
	}

	target, err := ValidateOrderStatus(string(req.Target))
	if err != nil {
		return nil, err
	}

	var locked bool
	err = retryStore(ctx, func() error {
		var acquireErr error
		locked, acquireErr = s.lockStore.AcquireOrderLock(ctx, req.OrderID, orderLockTTL)
		return acquireErr
	})
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	if !locked {
		return nil, ErrAssignmentConflict
	}
	defer func() {
		if err := s.lockStore.ReleaseOrderLock(ctx, req.OrderID); err != nil {
			log.Printf("[ORDERS] release lock %s: %v", req.OrderID, err)
		}
	}()

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(order.Status, target) {
		return nil, ErrInvalidTransition
	}
	if !domain.RoleAllowed(order.Status, target, req.ActorRole) {
		return nil, ErrActorNotAllowed
	}

	if target.IsDeliverySubstate() {
		if order.CourierID == "" {
			return nil, ErrCourierNotBound
		}
		// Couriers can only move their own order.
		if req.ActorRole == domain.RoleCourier && req.ActorID != order.CourierID {
			return nil, ErrActorNotAllowed
		}
		if req.Location != nil {
			if !isValidLatitude(req.Location.Lat) || !isValidLongitude(req.Location.Lng) {
				return nil, ErrInvalidLocation
			}
			snapshot := *req.Location
			if snapshot.RecordedAt.IsZero() {
				snapshot.RecordedAt = time.Now()
			}
			order.CourierLocation = snapshot
		}
	}

	if target == domain.OrderStatusCompleted && order.Status == domain.OrderStatusReady && order.Type == domain.OrderTypeDelivery {
		// Delivery orders finish through the delivery leg.
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	order.Status = target
	switch target {
	case domain.OrderStatusDelivered:
		order.DeliveredAt = now
	case domain.OrderStatusCancelled:
		order.CancelledAt = now
		order.CancelReason = req.Reason
	}

	// Terminalizing an order with a bound courier hands the courier back.
	releaseCourier := order.CourierID != "" && target.IsTerminal() && target != domain.OrderStatusRefunded

	if err := s.commitTransition(ctx, order, releaseCourier); err != nil {
		return nil, err
	}

	if releaseCourier && s.cacheStore != nil {
		_ = s.cacheStore.InvalidateCourier(ctx, order.CourierID)
		_ = s.cacheStore.AddAvailableCourier(ctx, order.CourierID)
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChanged(order)
	}

	return order, nil
}

// CancelOrderRequest contains the parameters for cancelling an order.
type CancelOrderRequest struct {
	OrderID     string
	CancelledBy domain.ActorRole
	ActorID     string
	Reason      string
}

// CancelOrder transitions the order to cancelled with a reason. The
// reason commits in the same versioned update as the status change.
func (s *OrderService) CancelOrder(ctx context.Context, req CancelOrderRequest) (*domain.Order, error) {
	return s.Transition(ctx, TransitionRequest{
		OrderID:   req.OrderID,
		Target:    domain.OrderStatusCancelled,
		ActorRole: req.CancelledBy,
		ActorID:   req.ActorID,
		Reason:    req.Reason,
	})
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orderRepo.GetByID(ctx, orderID)
}

// GetAllOrders retrieves recent orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.orderRepo.GetAll(ctx)
}

// commitTransition writes the status change and, when required, the
// courier's availability release in one transaction.
func (s *OrderService) commitTransition(ctx context.Context, order *domain.Order, releaseCourier bool) error {
	err := s.store.ExecTx(ctx, func(repos repository.TxRepos) error {
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		if releaseCourier {
			return repos.Couriers.UpdateAvailability(ctx, order.CourierID, true)
		}
		return nil
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrAssignmentConflict
	}
	return err
}

// ValidateOrderType parses and validates an order type string.
func ValidateOrderType(raw string) (domain.OrderType, error) {
	switch domain.OrderType(raw) {
	case domain.OrderTypeDelivery, domain.OrderTypePickup, domain.OrderTypeDineIn:
		return domain.OrderType(raw), nil
	case "":
		return domain.OrderTypeDelivery, nil
	default:
		return "", ErrInvalidOrderType
	}
}

// ValidateOrderStatus parses and validates an order status string.
func ValidateOrderStatus(raw string) (domain.OrderStatus, error) {
	switch domain.OrderStatus(raw) {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusPreparing,
		domain.OrderStatusReady, domain.OrderStatusPickedUp, domain.OrderStatusOnDelivery,
		domain.OrderStatusDelivered, domain.OrderStatusCompleted, domain.OrderStatusCancelled,
		domain.OrderStatusRefunded:
		return domain.OrderStatus(raw), nil
	default:
		return "", ErrInvalidStatus
	}
}
