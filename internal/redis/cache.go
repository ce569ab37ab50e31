package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles courier entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// CourierCacheTTL is short because online/availability flip often.
const CourierCacheTTL = 30 * time.Second

const (
	courierCachePrefix  = "cache:courier:"
	availableCourierKey = "available_couriers"
)

// CachedCourier represents a cached courier entity.
type CachedCourier struct {
	ID          string  `json:"id"`
	BranchID    string  `json:"branch_id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	VehicleType string  `json:"vehicle_type"`
	Rating      float64 `json:"rating"`
	IsOnline    bool    `json:"is_online"`
	IsAvailable bool    `json:"is_available"`
}

// GetCourier retrieves a courier from cache. A miss returns nil, nil.
func (s *CacheStore) GetCourier(ctx context.Context, courierID string) (*CachedCourier, error) {
	data, err := s.client.Get(ctx, courierCachePrefix+courierID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var courier CachedCourier
	if err := json.Unmarshal(data, &courier); err != nil {
		return nil, err
	}
	return &courier, nil
}

// SetCourier stores a courier in cache.
func (s *CacheStore) SetCourier(ctx context.Context, courier *CachedCourier) error {
	data, err := json.Marshal(courier)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, courierCachePrefix+courier.ID, data, CourierCacheTTL).Err()
}

// InvalidateCourier removes a courier from cache.
func (s *CacheStore) InvalidateCourier(ctx context.Context, courierID string) error {
	return s.client.Del(ctx, courierCachePrefix+courierID).Err()
}

// GetCouriersBatch retrieves multiple couriers from cache using a
// pipeline. Returns the hits and the IDs that missed.
func (s *CacheStore) GetCouriersBatch(ctx context.Context, courierIDs []string) (map[string]*CachedCourier, []string, error) {
	if len(courierIDs) == 0 {
		return make(map[string]*CachedCourier), nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(courierIDs))

	for _, id := range courierIDs {
		cmds[id] = pipe.Get(ctx, courierCachePrefix+id)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, courierIDs, err
	}

	result := make(map[string]*CachedCourier)
	var missing []string

	for id, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}

		var courier CachedCourier
		if err := json.Unmarshal(data, &courier); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &courier
	}

	return result, missing, nil
}

// AddAvailableCourier adds a courier to the available set used for
// fast dashboard lookups.
func (s *CacheStore) AddAvailableCourier(ctx context.Context, courierID string) error {
	return s.client.SAdd(ctx, availableCourierKey, courierID).Err()
}

// RemoveAvailableCourier removes a courier from the available set.
func (s *CacheStore) RemoveAvailableCourier(ctx context.Context, courierID string) error {
	return s.client.SRem(ctx, availableCourierKey, courierID).Err()
}

// GetAvailableCouriers returns all courier IDs in the available set.
func (s *CacheStore) GetAvailableCouriers(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, availableCourierKey).Result()
}
