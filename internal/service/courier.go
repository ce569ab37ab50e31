package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// Notifier is the fan-out contract the services publish through.
// Implementations must never block or fail the caller.
type Notifier interface {
	NotifyOrderCreated(order *domain.Order)
	NotifyOrderAssigned(order *domain.Order)
	NotifyStatusChanged(order *domain.Order)
	NotifyCourierLocation(courier *domain.Courier, point domain.GeoPoint)
	NotifyCourierOnline(courier *domain.Courier, online bool)
}

// Ensure EventService satisfies the contract.
var _ Notifier = (*EventService)(nil)

// CourierService owns courier membership, live locations and the
// online/availability flags.
type CourierService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	courierRepo   repository.CourierRepository
	notifier      Notifier
}

// NewCourierService creates a new CourierService.
func NewCourierService(
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	courierRepo repository.CourierRepository,
	notifier Notifier,
) *CourierService {
	return &CourierService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		courierRepo:   courierRepo,
		notifier:      notifier,
	}
}

// RegisterCourierRequest contains the parameters for registering a courier.
type RegisterCourierRequest struct {
	BranchID    string
	Name        string
	Phone       string
	VehicleType domain.VehicleType
}

// Register onboards a new courier, offline and available by default.
func (s *CourierService) Register(ctx context.Context, req RegisterCourierRequest) (*domain.Courier, error) {
	if req.BranchID == "" {
		return nil, ErrInvalidBranchID
	}

	courier := &domain.Courier{
		ID:          uuid.New().String(),
		BranchID:    req.BranchID,
		Name:        req.Name,
		Phone:       req.Phone,
		VehicleType: req.VehicleType,
		IsAvailable: true,
		IsActive:    true,
	}

	if err := s.courierRepo.Create(ctx, courier); err != nil {
		return nil, err
	}

	return courier, nil
}

// ReportLocationRequest contains the parameters for a location report.
type ReportLocationRequest struct {
	CourierID  string
	Lat        float64
	Lng        float64
	ReportedAt time.Time // zero means "now"
}

// ReportLocation stores a courier's position. Reports are last-writer-
// wins by timestamp; a report older than the stored one is a no-op.
// A courier reporting location is marked online.
func (s *CourierService) ReportLocation(ctx context.Context, req ReportLocationRequest) error {
	if req.CourierID == "" {
		return ErrInvalidCourierID
	}

	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return ErrInvalidLocation
	}

	courier, err := s.courierRepo.GetByID(ctx, req.CourierID)
	if err != nil {
		return err
	}
	if !courier.IsActive {
		return ErrCourierInactive
	}

	reportedAt := req.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now()
	}

	var stored bool
	err = retryStore(ctx, func() error {
		var reportErr error
		stored, reportErr = s.locationStore.Report(ctx, req.CourierID, req.Lat, req.Lng, reportedAt)
		return reportErr
	})
	if err != nil {
		return ErrStoreUnavailable
	}
	if !stored {
		// Out-of-order retry, current position is newer. Nothing to do.
		return nil
	}

	if !courier.IsOnline {
		if err := s.courierRepo.UpdateOnline(ctx, req.CourierID, true); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		courier.IsOnline = true
	}

	s.refreshCache(ctx, courier)

	if s.notifier != nil {
		s.notifier.NotifyCourierLocation(courier, domain.GeoPoint{
			Lat:        req.Lat,
			Lng:        req.Lng,
			RecordedAt: reportedAt,
		})
	}

	return nil
}

// GetLocation returns the last known location of a courier, or nil
// when none was ever reported.
func (s *CourierService) GetLocation(ctx context.Context, courierID string) (*domain.GeoPoint, error) {
	if courierID == "" {
		return nil, ErrInvalidCourierID
	}

	point, err := s.locationStore.Get(ctx, courierID)
	if err != nil {
		return nil, ErrStoreUnavailable
	}
	return point, nil
}

// SetOnline toggles the courier's shift flag. Going offline does not
// touch an in-flight assignment; a bound courier finishes the delivery
// or is explicitly reassigned.
func (s *CourierService) SetOnline(ctx context.Context, courierID string, online bool) error {
	if courierID == "" {
		return ErrInvalidCourierID
	}

	courier, err := s.courierRepo.GetByID(ctx, courierID)
	if err != nil {
		return err
	}

	if err := s.courierRepo.UpdateOnline(ctx, courierID, online); err != nil {
		return err
	}
	courier.IsOnline = online

	s.refreshCache(ctx, courier)

	if s.notifier != nil {
		s.notifier.NotifyCourierOnline(courier, online)
	}

	return nil
}

// SetAvailability flips the availability flag. It is idempotent and is
// driven by the assignment engine and state machine, never by clients.
func (s *CourierService) SetAvailability(ctx context.Context, courierID string, available bool) error {
	if courierID == "" {
		return ErrInvalidCourierID
	}

	if err := s.courierRepo.UpdateAvailability(ctx, courierID, available); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateCourier(ctx, courierID)
		if available {
			_ = s.cacheStore.AddAvailableCourier(ctx, courierID)
		} else {
			_ = s.cacheStore.RemoveAvailableCourier(ctx, courierID)
		}
	}

	return nil
}

// Candidate is a ranked entry from ListCandidates.
type Candidate struct {
	Courier  *domain.Courier
	Location *domain.GeoPoint // nil when unknown
	Fresh    bool
}

// ListCandidates returns the branch's couriers ranked most actionable
// first: available, then fresh location, then online, rating breaking
// ties, id last so the order is deterministic. Busy or stale couriers
// stay in the list so operators can override.
func (s *CourierService) ListCandidates(ctx context.Context, branchID string) ([]Candidate, error) {
	if branchID == "" {
		return nil, ErrInvalidBranchID
	}

	couriers, err := s.courierRepo.GetByBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(couriers))
	for i, c := range couriers {
		ids[i] = c.ID
	}

	// Location store down means unknown freshness, not a failed request.
	locations, err := s.locationStore.GetBatch(ctx, ids)
	if err != nil {
		log.Printf("[COURIERS] location batch for branch %s: %v", branchID, err)
		locations = nil
	}

	now := time.Now()
	candidates := make([]Candidate, 0, len(couriers))
	for _, c := range couriers {
		candidate := Candidate{Courier: c}
		if point, ok := locations[c.ID]; ok {
			p := point
			candidate.Location = &p
			candidate.Fresh = point.Fresh(now)
		}
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Courier.IsAvailable != b.Courier.IsAvailable {
			return a.Courier.IsAvailable
		}
		if a.Fresh != b.Fresh {
			return a.Fresh
		}
		if a.Courier.IsOnline != b.Courier.IsOnline {
			return a.Courier.IsOnline
		}
		if a.Courier.Rating != b.Courier.Rating {
			return a.Courier.Rating > b.Courier.Rating
		}
		return a.Courier.ID < b.Courier.ID
	})

	return candidates, nil
}

// FindNearby returns couriers that last reported within radiusKm of
// the given point, closest first. Inactive couriers and couriers whose
// record is gone are skipped.
func (s *CourierService) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]Candidate, error) {
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}
	if radiusKm <= 0 {
		radiusKm = 5
	}

	ids, err := s.locationStore.FindNearby(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, ErrStoreUnavailable
	}

	locations, err := s.locationStore.GetBatch(ctx, ids)
	if err != nil {
		log.Printf("[COURIERS] location batch for nearby query: %v", err)
		locations = nil
	}

	now := time.Now()
	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		courier, err := s.courierRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if !courier.IsActive {
			continue
		}
		candidate := Candidate{Courier: courier}
		if point, ok := locations[id]; ok {
			p := point
			candidate.Location = &p
			candidate.Fresh = point.Fresh(now)
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// GetAll retrieves all couriers.
func (s *CourierService) GetAll(ctx context.Context) ([]*domain.Courier, error) {
	return s.courierRepo.GetAll(ctx)
}

// GetCourier retrieves a courier, serving from cache when possible.
func (s *CourierService) GetCourier(ctx context.Context, courierID string) (*domain.Courier, error) {
	if courierID == "" {
		return nil, ErrInvalidCourierID
	}

	if s.cacheStore != nil {
		cached, err := s.cacheStore.GetCourier(ctx, courierID)
		if err == nil && cached != nil {
			return fromCached(cached), nil
		}
	}

	courier, err := s.courierRepo.GetByID(ctx, courierID)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx, courier)
	return courier, nil
}

// ListAvailable returns active couriers currently flagged available,
// serving from the availability set and entity cache when possible.
func (s *CourierService) ListAvailable(ctx context.Context) ([]*domain.Courier, error) {
	if s.cacheStore != nil {
		if couriers, ok := s.availableFromCache(ctx); ok {
			return couriers, nil
		}
	}

	all, err := s.courierRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]*domain.Courier, 0, len(all))
	for _, c := range all {
		if c.IsActive && c.IsAvailable {
			available = append(available, c)
		}
	}
	return available, nil
}

func (s *CourierService) availableFromCache(ctx context.Context) ([]*domain.Courier, bool) {
	ids, err := s.cacheStore.GetAvailableCouriers(ctx)
	if err != nil || len(ids) == 0 {
		return nil, false
	}

	cached, misses, err := s.cacheStore.GetCouriersBatch(ctx, ids)
	if err != nil {
		return nil, false
	}

	couriers := make([]*domain.Courier, 0, len(ids))
	for _, id := range ids {
		if entry, ok := cached[id]; ok {
			couriers = append(couriers, fromCached(entry))
		}
	}
	// Cache misses fall back to the repository and re-warm the cache.
	for _, id := range misses {
		courier, err := s.courierRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if !courier.IsActive || !courier.IsAvailable {
			continue
		}
		s.refreshCache(ctx, courier)
		couriers = append(couriers, courier)
	}

	sort.Slice(couriers, func(i, j int) bool { return couriers[i].ID < couriers[j].ID })
	return couriers, true
}

func fromCached(c *redis.CachedCourier) *domain.Courier {
	return &domain.Courier{
		ID:          c.ID,
		BranchID:    c.BranchID,
		Name:        c.Name,
		Phone:       c.Phone,
		VehicleType: domain.VehicleType(c.VehicleType),
		Rating:      c.Rating,
		IsOnline:    c.IsOnline,
		IsAvailable: c.IsAvailable,
		IsActive:    true,
	}
}

// Deactivate soft-deletes a courier and drops its live state.
func (s *CourierService) Deactivate(ctx context.Context, courierID string) error {
	if courierID == "" {
		return ErrInvalidCourierID
	}

	if err := s.courierRepo.Deactivate(ctx, courierID); err != nil {
		return err
	}

	if err := s.locationStore.Remove(ctx, courierID); err != nil {
		log.Printf("[COURIERS] remove location %s: %v", courierID, err)
	}
	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateCourier(ctx, courierID)
		_ = s.cacheStore.RemoveAvailableCourier(ctx, courierID)
	}

	return nil
}

func (s *CourierService) refreshCache(ctx context.Context, courier *domain.Courier) {
	if s.cacheStore == nil {
		return
	}

	cached := &redis.CachedCourier{
		ID:          courier.ID,
		BranchID:    courier.BranchID,
		Name:        courier.Name,
		Phone:       courier.Phone,
		VehicleType: string(courier.VehicleType),
		Rating:      courier.Rating,
		IsOnline:    courier.IsOnline,
		IsAvailable: courier.IsAvailable,
	}
	_ = s.cacheStore.SetCourier(ctx, cached)

	if courier.IsAvailable {
		_ = s.cacheStore.AddAvailableCourier(ctx, courier.ID)
	} else {
		_ = s.cacheStore.RemoveAvailableCourier(ctx, courier.ID)
	}
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
