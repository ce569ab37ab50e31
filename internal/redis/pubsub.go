package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Room channel layout. Branch rooms carry operations-dashboard traffic,
// order rooms carry customer tracking, courier rooms carry direct
// instructions to one courier's app.
func BranchRoom(branchID string) string { return fmt.Sprintf("branch:%s", branchID) }
func OrderRoom(orderID string) string { return fmt.Sprintf("order:%s", orderID) }
func CourierRoom(courierID string) string { return fmt.Sprintf("courier:%s", courierID) }

// PubSubStore broadcasts events to room channels over Redis pub/sub.
// Delivery is at-most-once to currently connected subscribers; nothing
// is queued for observers that are offline at publish time.
type PubSubStore struct {
	client *redis.Client
}

// NewPubSubStore creates a new PubSubStore.
func NewPubSubStore(client *redis.Client) *PubSubStore {
	return &PubSubStore{client: client}
}

// Publish sends a payload to a room channel.
func (s *PubSubStore) Publish(ctx context.Context, room string, payload []byte) error {
	return s.client.Publish(ctx, room, payload).Err()
}

// Subscribe opens a subscription on the given rooms. Callers own the
// returned PubSub and must Close it.
func (s *PubSubStore) Subscribe(ctx context.Context, rooms ...string) *redis.PubSub {
	return s.client.Subscribe(ctx, rooms...)
}
