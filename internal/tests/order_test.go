package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func newOrderFixture() (*service.OrderService, *MockOrderRepository, *MockCourierRepository, *MockNotifier) {
	orderRepo := NewMockOrderRepository()
	courierRepo := NewMockCourierRepository()
	lockStore := NewMockLockStore()
	notifier := NewMockNotifier()
	store := NewMockStore(orderRepo, courierRepo)

	svc := service.NewOrderService(store, lockStore, nil, orderRepo, courierRepo, notifier)
	return svc, orderRepo, courierRepo, notifier
}

func TestCreateOrder_DefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, notifier := newOrderFixture()

	items := []domain.OrderItem{
		{Name: "plov", Price: 40000, Quantity: 2},
		{Name: "non", Price: 5000, Quantity: 1},
	}

	order, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		CustomerID: "customer-1",
		BranchID:   "branch-1",
		Items:      items,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", order.Status)
	}
	if order.Type != domain.OrderTypeDelivery {
		t.Errorf("expected delivery default, got %s", order.Type)
	}
	if order.TotalAmount != 85000 {
		t.Errorf("expected total 85000, got %f", order.TotalAmount)
	}
	if len(notifier.OrderCreated) != 1 {
		t.Errorf("expected one created event, got %v", notifier.OrderCreated)
	}

	if _, err := svc.CreateOrder(ctx, service.CreateOrderRequest{CustomerID: "customer-1", BranchID: "branch-1"}); !errors.Is(err, service.ErrEmptyOrder) {
		t.Errorf("expected empty order error, got %v", err)
	}
	if _, err := svc.CreateOrder(ctx, service.CreateOrderRequest{BranchID: "branch-1", Items: items}); !errors.Is(err, service.ErrInvalidCustomerID) {
		t.Errorf("expected customer validation error, got %v", err)
	}
}

func TestTransition_IllegalJumpLeavesOrderUntouched(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, _, notifier := newOrderFixture()

	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusPending, Type: domain.OrderTypeDelivery})

	_, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID:   "order-1",
		Target:    domain.OrderStatusDelivered,
		ActorRole: domain.RoleAdmin,
	})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}

	stored := orderRepo.GetOrder("order-1")
	if stored.Status != domain.OrderStatusPending {
		t.Errorf("expected order still pending, got %s", stored.Status)
	}
	if orderRepo.UpdateCallCount != 0 {
		t.Errorf("expected no writes, got %d", orderRepo.UpdateCallCount)
	}
	if len(notifier.StatusChanged) != 0 {
		t.Errorf("expected no events, got %v", notifier.StatusChanged)
	}
}

func TestTransition_RoleRules(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, courierRepo, _ := newOrderFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true})

	// Kitchen confirms, customer cannot.
	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusPending, Type: domain.OrderTypeDelivery})

	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-1", Target: domain.OrderStatusConfirmed, ActorRole: domain.RoleCustomer,
	}); !errors.Is(err, service.ErrActorNotAllowed) {
		t.Errorf("expected customer blocked from confirming, got %v", err)
	}
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-1", Target: domain.OrderStatusConfirmed, ActorRole: domain.RoleKitchen,
	}); err != nil {
		t.Errorf("expected kitchen confirm to pass, got %v", err)
	}

	// Customer may cancel early.
	orderRepo.AddOrder(&domain.Order{ID: "order-2", Status: domain.OrderStatusPending, Type: domain.OrderTypeDelivery})
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-2", Target: domain.OrderStatusCancelled, ActorRole: domain.RoleCustomer,
	}); err != nil {
		t.Errorf("expected customer cancel from pending to pass, got %v", err)
	}

	// But not once the kitchen is cooking.
	orderRepo.AddOrder(&domain.Order{ID: "order-3", Status: domain.OrderStatusPreparing, Type: domain.OrderTypeDelivery})
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-3", Target: domain.OrderStatusCancelled, ActorRole: domain.RoleCustomer,
	}); !errors.Is(err, service.ErrActorNotAllowed) {
		t.Errorf("expected customer blocked from late cancel, got %v", err)
	}

	// Refunds are an admin operation.
	orderRepo.AddOrder(&domain.Order{ID: "order-4", Status: domain.OrderStatusDelivered, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-4", Target: domain.OrderStatusRefunded, ActorRole: domain.RoleKitchen,
	}); !errors.Is(err, service.ErrActorNotAllowed) {
		t.Errorf("expected kitchen blocked from refund, got %v", err)
	}
}

func TestTransition_DeliverySubstateRequiresBoundCourier(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, courierRepo, _ := newOrderFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true})
	orderRepo.AddOrder(&domain.Order{ID: "order-unbound", Status: domain.OrderStatusReady, Type: domain.OrderTypeDelivery})
	orderRepo.AddOrder(&domain.Order{ID: "order-bound", Status: domain.OrderStatusReady, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})

	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-unbound", Target: domain.OrderStatusPickedUp, ActorRole: domain.RoleAdmin,
	}); !errors.Is(err, service.ErrCourierNotBound) {
		t.Errorf("expected unbound rejection, got %v", err)
	}

	// A different courier cannot move someone else's order.
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-bound", Target: domain.OrderStatusPickedUp,
		ActorRole: domain.RoleCourier, ActorID: "courier-impostor",
	}); !errors.Is(err, service.ErrActorNotAllowed) {
		t.Errorf("expected impostor rejection, got %v", err)
	}

	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-bound", Target: domain.OrderStatusPickedUp,
		ActorRole: domain.RoleCourier, ActorID: "courier-1",
	}); err != nil {
		t.Errorf("expected bound courier to pass, got %v", err)
	}
}

func TestTransition_SnapshotsCourierLocation(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, courierRepo, _ := newOrderFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true})
	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusReady, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})

	order, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID:   "order-1",
		Target:    domain.OrderStatusPickedUp,
		ActorRole: domain.RoleCourier,
		ActorID:   "courier-1",
		Location:  &domain.GeoPoint{Lat: 41.3111, Lng: 69.2797},
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if order.CourierLocation.Lat != 41.3111 || order.CourierLocation.Lng != 69.2797 {
		t.Errorf("expected location snapshot, got %+v", order.CourierLocation)
	}
	if order.CourierLocation.RecordedAt.IsZero() {
		t.Error("expected snapshot timestamp defaulted to now")
	}

	// Garbage GPS never reaches the order.
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-1", Target: domain.OrderStatusOnDelivery,
		ActorRole: domain.RoleCourier, ActorID: "courier-1",
		Location: &domain.GeoPoint{Lat: 141.0, Lng: 69.0},
	}); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected location validation error, got %v", err)
	}
}

func TestTransition_DeliveredReleasesCourierAndStampsTime(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, courierRepo, notifier := newOrderFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsAvailable: false})
	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusOnDelivery, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})

	order, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID:   "order-1",
		Target:    domain.OrderStatusDelivered,
		ActorRole: domain.RoleCourier,
		ActorID:   "courier-1",
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	if order.DeliveredAt.IsZero() {
		t.Error("expected delivered_at stamped")
	}
	if !courierRepo.GetCourier("courier-1").IsAvailable {
		t.Error("expected courier released on delivery")
	}
	if len(notifier.StatusChanged) != 1 || notifier.StatusChanged[0] != "order-1:DELIVERED" {
		t.Errorf("expected delivered event, got %v", notifier.StatusChanged)
	}
}

func TestTransition_RefundKeepsCourierAvailabilityUntouched(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, courierRepo, _ := newOrderFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsAvailable: false})
	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusDelivered, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})

	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-1", Target: domain.OrderStatusRefunded, ActorRole: domain.RoleAdmin,
	}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	// Delivery already released the courier once; refunding the money
	// later is not a second release.
	if courierRepo.GetCourier("courier-1").IsAvailable {
		t.Error("expected availability untouched by refund")
	}
}

func TestTransition_ReadyToCompletedBlockedForDelivery(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, _, _ := newOrderFixture()

	orderRepo.AddOrder(&domain.Order{ID: "order-delivery", Status: domain.OrderStatusReady, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})
	orderRepo.AddOrder(&domain.Order{ID: "order-pickup", Status: domain.OrderStatusReady, Type: domain.OrderTypePickup})

	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-delivery", Target: domain.OrderStatusCompleted, ActorRole: domain.RoleKitchen,
	}); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected delivery order forced through delivery leg, got %v", err)
	}

	// Pickup orders hand over at the counter.
	if _, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-pickup", Target: domain.OrderStatusCompleted, ActorRole: domain.RoleKitchen,
	}); err != nil {
		t.Errorf("expected pickup completion to pass, got %v", err)
	}
}

func TestCancelOrder_ReleasesCourierAndStoresReason(t *testing.T) {
	ctx := context.Background()
	svc, orderRepo, courierRepo, _ := newOrderFixture()

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", IsActive: true, IsAvailable: false})
	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusConfirmed, Type: domain.OrderTypeDelivery, CourierID: "courier-1"})

	order, err := svc.CancelOrder(ctx, service.CancelOrderRequest{
		OrderID:     "order-1",
		CancelledBy: domain.RoleAdmin,
		Reason:      "customer unreachable",
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", order.Status)
	}
	if order.CancelledAt.IsZero() {
		t.Error("expected cancelled_at stamped")
	}
	if !courierRepo.GetCourier("courier-1").IsAvailable {
		t.Error("expected courier released on cancel")
	}
	if got := orderRepo.GetOrder("order-1").CancelReason; got != "customer unreachable" {
		t.Errorf("expected reason persisted, got %q", got)
	}
	// Status, timestamp and reason land in one versioned write.
	if got := atomic.LoadInt32(&orderRepo.UpdateCallCount); got != 1 {
		t.Errorf("expected a single order update, got %d", got)
	}
}

func TestTransition_RetriesTransientLockFailure(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	courierRepo := NewMockCourierRepository()
	lockStore := NewMockLockStore()
	store := NewMockStore(orderRepo, courierRepo)
	svc := service.NewOrderService(store, lockStore, nil, orderRepo, courierRepo, NewMockNotifier())

	orderRepo.AddOrder(&domain.Order{ID: "order-1", Status: domain.OrderStatusPending, Type: domain.OrderTypeDelivery})
	lockStore.AcquireError = errors.New("i/o timeout")
	lockStore.FailAcquires = 1

	order, err := svc.Transition(ctx, service.TransitionRequest{
		OrderID: "order-1", Target: domain.OrderStatusConfirmed, ActorRole: domain.RoleKitchen,
	})
	if err != nil {
		t.Fatalf("expected transition to survive a transient lock failure, got %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Errorf("expected confirmed after retry, got %s", order.Status)
	}
	if got := atomic.LoadInt32(&lockStore.AcquireCallCount); got != 2 {
		t.Errorf("expected 2 acquire attempts, got %d", got)
	}
}

func TestOrderLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	courierRepo := NewMockCourierRepository()
	lockStore := NewMockLockStore()
	notifier := NewMockNotifier()
	store := NewMockStore(orderRepo, courierRepo)

	orderSvc := service.NewOrderService(store, lockStore, nil, orderRepo, courierRepo, notifier)
	assignSvc := service.NewAssignmentService(store, lockStore, nil, orderRepo, courierRepo, notifier)

	courierRepo.AddCourier(&domain.Courier{ID: "courier-1", BranchID: "branch-1", IsActive: true, IsAvailable: true, IsOnline: true})

	order, err := orderSvc.CreateOrder(ctx, service.CreateOrderRequest{
		CustomerID: "customer-1",
		BranchID:   "branch-1",
		Items:      []domain.OrderItem{{Name: "lagman", Price: 35000, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		target domain.OrderStatus
		role   domain.ActorRole
	}{
		{domain.OrderStatusConfirmed, domain.RoleKitchen},
		{domain.OrderStatusPreparing, domain.RoleKitchen},
		{domain.OrderStatusReady, domain.RoleKitchen},
	}
	for _, step := range steps {
		if _, err := orderSvc.Transition(ctx, service.TransitionRequest{
			OrderID: order.ID, Target: step.target, ActorRole: step.role,
		}); err != nil {
			t.Fatalf("transition to %s: %v", step.target, err)
		}
	}

	if _, err := assignSvc.Assign(ctx, service.AssignRequest{OrderID: order.ID, CourierID: "courier-1", AdminID: "admin-1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := orderSvc.Transition(ctx, service.TransitionRequest{
		OrderID: order.ID, Target: domain.OrderStatusPickedUp,
		ActorRole: domain.RoleCourier, ActorID: "courier-1",
		Location: &domain.GeoPoint{Lat: 41.2995, Lng: 69.2401, RecordedAt: time.Now()},
	}); err != nil {
		t.Fatalf("pickup: %v", err)
	}

	final, err := orderSvc.Transition(ctx, service.TransitionRequest{
		OrderID: order.ID, Target: domain.OrderStatusDelivered,
		ActorRole: domain.RoleCourier, ActorID: "courier-1",
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if final.Status != domain.OrderStatusDelivered {
		t.Errorf("expected delivered, got %s", final.Status)
	}
	if final.CourierLocation.Lat != 41.2995 {
		t.Errorf("expected pickup snapshot retained, got %+v", final.CourierLocation)
	}
	if !courierRepo.GetCourier("courier-1").IsAvailable {
		t.Error("expected courier back in rotation")
	}
	if len(notifier.StatusChanged) != 5 {
		t.Errorf("expected five status events, got %v", notifier.StatusChanged)
	}
	if len(notifier.OrderAssigned) != 1 {
		t.Errorf("expected one assignment event, got %v", notifier.OrderAssigned)
	}
}
