package service

import (
	"context"
	"errors"
	"log"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const orderLockTTL = 10 * time.Second

// AssignmentService binds exactly one courier to an order. The pair
// (order.courierID, courier.isAvailable) is one logical resource and
// is only ever mutated together inside a single transaction.
type AssignmentService struct {
	store       repository.Transactor
	lockStore   redis.LockStoreInterface
	cacheStore  *redis.CacheStore
	orderRepo   repository.OrderRepository
	courierRepo repository.CourierRepository
	notifier    Notifier
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	store repository.Transactor,
	lockStore redis.LockStoreInterface,
	cacheStore *redis.CacheStore,
	orderRepo repository.OrderRepository,
	courierRepo repository.CourierRepository,
	notifier Notifier,
) *AssignmentService {
	return &AssignmentService{
		store:       store,
		lockStore:   lockStore,
		cacheStore:  cacheStore,
		orderRepo:   orderRepo,
		courierRepo: courierRepo,
		notifier:    notifier,
	}
}

// AssignRequest contains the parameters for assigning a courier.
type AssignRequest struct {
	OrderID   string
	CourierID string
	AdminID   string
}

// Assign binds the courier to the order with exclusivity. Availability
// is advisory: an operator may hand a busy-looking courier a new order
// as long as that courier is not bound to a different active order.
// Reassignment (same order, different courier) releases the previous
// courier's availability in the same transaction.
func (s *AssignmentService) Assign(ctx context.Context, req AssignRequest) (*domain.Order, error) {
	if req.OrderID == "" {
		return nil, ErrInvalidOrderID
	}
	if req.CourierID == "" {
		return nil, ErrInvalidCourierID
	}

	// Serialize against concurrent assigns and transitions on this order.
	var locked bool
	err := retryStore(ctx, func() error {
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
			log.Printf("[ASSIGN] release lock %s: %v", req.OrderID, err)
		}
	}()

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status.IsTerminal() {
		return nil, ErrOrderTerminal
	}
	if order.Type != domain.OrderTypeDelivery {
		return nil, ErrNotDeliveryOrder
	}

	courier, err := s.courierRepo.GetByID(ctx, req.CourierID)
	if err != nil {
		return nil, err
	}
	if !courier.IsActive {
		return nil, ErrCourierInactive
	}

	if order.CourierID == req.CourierID {
		// Same binding already in place; idempotent.
		return order, nil
	}

	// Exclusivity: at most one active order per courier.
	active, err := s.orderRepo.GetActiveByCourierID(ctx, req.CourierID)
	if err != nil {
		return nil, err
	}
	if active != nil && active.ID != order.ID {
		return nil, ErrCourierBusy
	}

	previousCourierID := order.CourierID
	order.CourierID = req.CourierID
	order.AssignedAt = time.Now()

	// The bind and the availability flips commit together. The version
	// check on the order is the backstop against a lock that expired
	// under a slow competitor.
	err = s.store.ExecTx(ctx, func(repos repository.TxRepos) error {
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		if previousCourierID != "" {
			if err := repos.Couriers.UpdateAvailability(ctx, previousCourierID, true); err != nil {
				return err
			}
		}
		return repos.Couriers.UpdateAvailability(ctx, req.CourierID, false)
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, ErrAssignmentConflict
		}
		return nil, err
	}

	s.refreshAvailability(ctx, req.CourierID, false)
	if previousCourierID != "" {
		s.refreshAvailability(ctx, previousCourierID, true)
	}

	if s.notifier != nil {
		s.notifier.NotifyOrderAssigned(order)
	}

	log.Printf("[ASSIGN] order %s -> courier %s (admin %s)", order.ID, req.CourierID, req.AdminID)
	return order, nil
}

func (s *AssignmentService) refreshAvailability(ctx context.Context, courierID string, available bool) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.InvalidateCourier(ctx, courierID)
	if available {
		_ = s.cacheStore.AddAvailableCourier(ctx, courierID)
	} else {
		_ = s.cacheStore.RemoveAvailableCourier(ctx, courierID)
	}
}
