package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK COURIER REPOSITORY
// ──────────────────────────────────────────────

// MockCourierRepository is a mock implementation of CourierRepository.
type MockCourierRepository struct {
	mu       sync.RWMutex
	couriers map[string]*domain.Courier

	// Counters for verification
	CreateCallCount             int32
	UpdateAvailabilityCallCount int32
	UpdateOnlineCallCount       int32

	// Error injection
	CreateError             error
	UpdateAvailabilityError error
}

// NewMockCourierRepository creates a new mock courier repository.
func NewMockCourierRepository() *MockCourierRepository {
	return &MockCourierRepository{
		couriers: make(map[string]*domain.Courier),
	}
}

// AddCourier adds a courier to the mock repository.
func (m *MockCourierRepository) AddCourier(courier *domain.Courier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.couriers[courier.ID] = courier
}

func (m *MockCourierRepository) Create(ctx context.Context, courier *domain.Courier) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.couriers[courier.ID] = courier
	return nil
}

func (m *MockCourierRepository) GetByID(ctx context.Context, id string) (*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	courier, ok := m.couriers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *courier
	return &copy, nil
}

func (m *MockCourierRepository) GetByBranch(ctx context.Context, branchID string) ([]*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Courier
	for _, c := range m.couriers {
		if c.BranchID == branchID && c.IsActive {
			copy := *c
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockCourierRepository) GetAll(ctx context.Context) ([]*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Courier, 0, len(m.couriers))
	for _, c := range m.couriers {
		copy := *c
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockCourierRepository) UpdateOnline(ctx context.Context, id string, online bool) error {
	atomic.AddInt32(&m.UpdateOnlineCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	courier, ok := m.couriers[id]
	if !ok {
		return repository.ErrNotFound
	}
	courier.IsOnline = online
	return nil
}

func (m *MockCourierRepository) UpdateAvailability(ctx context.Context, id string, available bool) error {
	atomic.AddInt32(&m.UpdateAvailabilityCallCount, 1)
	if m.UpdateAvailabilityError != nil {
		return m.UpdateAvailabilityError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	courier, ok := m.couriers[id]
	if !ok {
		return repository.ErrNotFound
	}
	courier.IsAvailable = available
	return nil
}

func (m *MockCourierRepository) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	courier, ok := m.couriers[id]
	if !ok {
		return repository.ErrNotFound
	}
	courier.IsActive = false
	return nil
}

// GetCourier returns the courier by ID for test assertions.
func (m *MockCourierRepository) GetCourier(id string) *domain.Courier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.couriers[id]
}

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository with
// the same optimistic-version semantics as the Postgres one.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error

	// AfterGetByID, when set, runs after each successful GetByID. Tests
	// use it to interleave a competing write between read and update.
	AfterGetByID func()
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	order, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	copy := *order
	hook := m.AfterGetByID
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &copy, nil
}

func (m *MockOrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		copy := *o
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockOrderRepository) GetActiveByCourierID(ctx context.Context, courierID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.CourierID == courierID && !o.Status.IsTerminal() {
			copy := *o
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return repository.ErrVersionConflict
	}
	copy := *order
	copy.Version++
	m.orders[order.ID] = &copy
	order.Version++
	return nil
}

// GetOrder returns the order by ID for test assertions.
func (m *MockOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[id]; ok {
		copy := *order
		return &copy
	}
	return nil
}

// BumpVersion simulates a competing writer touching the stored row.
func (m *MockOrderRepository) BumpVersion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[id]; ok {
		order.Version++
	}
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockStore is a Transactor that hands the mock repositories to fn.
// There is no rollback: tests that need partial-failure semantics
// inject errors before any write happens.
type MockStore struct {
	Orders   *MockOrderRepository
	Couriers *MockCourierRepository
}

// NewMockStore creates a MockStore over the given mock repositories.
func NewMockStore(orders *MockOrderRepository, couriers *MockCourierRepository) *MockStore {
	return &MockStore{Orders: orders, Couriers: couriers}
}

func (m *MockStore) ExecTx(ctx context.Context, fn func(repository.TxRepos) error) error {
	return fn(repository.TxRepos{Orders: m.Orders, Couriers: m.Couriers})
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

type storedLocation struct {
	point domain.GeoPoint
}

// MockLocationStore is an in-memory implementation of
// LocationStoreInterface with the same last-writer-wins semantics as
// the Redis one.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]storedLocation

	// Counters for verification
	ReportCallCount int32

	// Error injection. ReportError fails every report unless
	// FailReports limits it to the first N calls.
	ReportError   error
	FailReports   int32
	GetError      error
	GetBatchError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]storedLocation),
	}
}

func (m *MockLocationStore) Report(ctx context.Context, courierID string, lat, lng float64, reportedAt time.Time) (bool, error) {
	call := atomic.AddInt32(&m.ReportCallCount, 1)
	if m.ReportError != nil && (m.FailReports == 0 || call <= m.FailReports) {
		return false, m.ReportError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.locations[courierID]; ok && stored.point.RecordedAt.After(reportedAt) {
		return false, nil
	}
	m.locations[courierID] = storedLocation{point: domain.GeoPoint{Lat: lat, Lng: lng, RecordedAt: reportedAt}}
	return true, nil
}

func (m *MockLocationStore) Get(ctx context.Context, courierID string) (*domain.GeoPoint, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.locations[courierID]
	if !ok {
		return nil, nil
	}
	point := stored.point
	return &point, nil
}

func (m *MockLocationStore) GetBatch(ctx context.Context, courierIDs []string) (map[string]domain.GeoPoint, error) {
	if m.GetBatchError != nil {
		return nil, m.GetBatchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]domain.GeoPoint)
	for _, id := range courierIDs {
		if stored, ok := m.locations[id]; ok {
			result[id] = stored.point
		}
	}
	return result, nil
}

func (m *MockLocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.locations))
	for id := range m.locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockLocationStore) Remove(ctx context.Context, courierID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, courierID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Counters for verification
	AcquireCallCount int32

	// Error injection. AcquireError fails every acquire unless
	// FailAcquires limits it to the first N calls.
	AcquireError error
	FailAcquires int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	call := atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil && (m.FailAcquires == 0 || call <= m.FailAcquires) {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[orderID] {
		return false, nil
	}
	m.locks[orderID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseOrderLock(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, orderID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records fan-out calls for assertions.
type MockNotifier struct {
	mu sync.Mutex

	OrderCreated     []string
	OrderAssigned    []string
	StatusChanged    []string // orderID:status
	CourierLocations []string
	CourierOnline    []string
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyOrderCreated(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderCreated = append(m.OrderCreated, order.ID)
}

func (m *MockNotifier) NotifyOrderAssigned(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderAssigned = append(m.OrderAssigned, order.ID+":"+order.CourierID)
}

func (m *MockNotifier) NotifyStatusChanged(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusChanged = append(m.StatusChanged, order.ID+":"+string(order.Status))
}

func (m *MockNotifier) NotifyCourierLocation(courier *domain.Courier, point domain.GeoPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CourierLocations = append(m.CourierLocations, courier.ID)
}

func (m *MockNotifier) NotifyCourierOnline(courier *domain.Courier, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CourierOnline = append(m.CourierOnline, courier.ID)
}
