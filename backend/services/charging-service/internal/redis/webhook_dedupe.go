package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallbackDeduper remembers processed gateway callback deliveries. Keys combine the transaction
// id with its state so a pending callback does not hide the later settlement.
type CallbackDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCallbackDeduper returns redis-backed deduper.
func NewCallbackDeduper(client *redis.Client, ttl time.Duration) *CallbackDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CallbackDeduper{client: client, ttl: ttl}
}

func callbackKey(deliveryKey string) string {
	return fmt.Sprintf("charging:callback:%s", deliveryKey)
}

// FirstDelivery records the delivery and reports whether this is the first time it was seen.
func (d *CallbackDeduper) FirstDelivery(ctx context.Context, deliveryKey string) (bool, error) {
	return d.client.SetNX(ctx, callbackKey(deliveryKey), 1, d.ttl).Result()
}

// Forget releases a delivery so a failed reconciliation can be redelivered.
func (d *CallbackDeduper) Forget(ctx context.Context, deliveryKey string) error {
	return d.client.Del(ctx, callbackKey(deliveryKey)).Err()
}
