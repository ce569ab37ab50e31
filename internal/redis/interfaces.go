package redis

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// LocationStoreInterface defines the interface for courier location operations.
type LocationStoreInterface interface {
	Report(ctx context.Context, courierID string, lat, lng float64, reportedAt time.Time) (bool, error)
	Get(ctx context.Context, courierID string) (*domain.GeoPoint, error)
	GetBatch(ctx context.Context, courierIDs []string) (map[string]domain.GeoPoint, error)
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error)
	Remove(ctx context.Context, courierID string) error
}

// LockStoreInterface defines the interface for per-order distributed locking.
type LockStoreInterface interface {
	AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID string) error
}

// PublisherInterface defines the interface for room-scoped broadcast.
type PublisherInterface interface {
	Publish(ctx context.Context, room string, payload []byte) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ PublisherInterface     = (*PubSubStore)(nil)
)
