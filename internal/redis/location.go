package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

const (
	courierGeoKey      = "couriers:locations"
	courierLocationKey = "couriers:location:" // + courierID, hash of lat/lng/ts
)

// reportScript upserts a courier location only when the incoming report
// is not older than the stored one. Retried or reordered network
// requests must never roll a position back, so the compare runs inside
// Redis as one atomic step.
//
// KEYS[1] = per-courier hash, KEYS[2] = geo index
// ARGV[1] = unix-milli timestamp, ARGV[2] = lat, ARGV[3] = lng, ARGV[4] = courier id
// Returns 1 when stored, 0 when dropped as stale.
var reportScript = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'ts')
if stored and tonumber(stored) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'lat', ARGV[2], 'lng', ARGV[3], 'ts', ARGV[1])
redis.call('GEOADD', KEYS[2], ARGV[3], ARGV[2], ARGV[4])
return 1
`)

// LocationStore holds the latest known position per courier in Redis.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// Report upserts a courier's location. Reports with a timestamp older
// than the stored one are dropped; the bool result reports whether the
// location was stored.
func (s *LocationStore) Report(ctx context.Context, courierID string, lat, lng float64, reportedAt time.Time) (bool, error) {
	keys := []string{courierLocationKey + courierID, courierGeoKey}
	args := []any{
		reportedAt.UnixMilli(),
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64),
		courierID,
	}

	stored, err := reportScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Get returns the last known location of a courier, or nil when the
// courier has never reported.
func (s *LocationStore) Get(ctx context.Context, courierID string) (*domain.GeoPoint, error) {
	fields, err := s.client.HGetAll(ctx, courierLocationKey+courierID).Result()
	if err != nil {
		return nil, err
	}
	return parseLocation(fields)
}

// GetBatch returns last known locations for the given couriers using a
// pipeline. Couriers with no report are absent from the result.
func (s *LocationStore) GetBatch(ctx context.Context, courierIDs []string) (map[string]domain.GeoPoint, error) {
	if len(courierIDs) == 0 {
		return map[string]domain.GeoPoint{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(courierIDs))
	for _, id := range courierIDs {
		cmds[id] = pipe.HGetAll(ctx, courierLocationKey+id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	result := make(map[string]domain.GeoPoint)
	for id, cmd := range cmds {
		point, err := parseLocation(cmd.Val())
		if err != nil || point == nil {
			continue
		}
		result[id] = *point
	}
	return result, nil
}

// FindNearby returns couriers within the given radius in kilometers,
// closest first.
func (s *LocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	results, err := s.client.GeoRadius(ctx, courierGeoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Name)
	}
	return ids, nil
}

// Remove drops a courier from the location store.
func (s *LocationStore) Remove(ctx context.Context, courierID string) error {
	if err := s.client.ZRem(ctx, courierGeoKey, courierID).Err(); err != nil {
		return err
	}
	return s.client.Del(ctx, courierLocationKey+courierID).Err()
}

func parseLocation(fields map[string]string) (*domain.GeoPoint, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return nil, err
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return nil, err
	}
	ms, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return nil, err
	}

	return &domain.GeoPoint{
		Lat:        lat,
		Lng:        lng,
		RecordedAt: time.UnixMilli(ms),
	}, nil
}
