package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// Locker hands out short-lived per-order locks (SET NX + TTL).
type Locker struct{ RDB *redis.Client }

func (l *Locker) TryAcquire(ctx context.Context, orderID string) (bool, error) {
	key := fmt.Sprintf(KeyReconcileLock, orderID)
	return l.RDB.SetNX(ctx, key, "1", TTLReconcileLock).Result()
}

func (l *Locker) Release(ctx context.Context, orderID string) error {
	key := fmt.Sprintf(KeyReconcileLock, orderID)
	return l.RDB.Del(ctx, key).Err()
}

// StatusCache caches the customer-visible order status blob.
type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Get(ctx context.Context, orderID string) (string, bool) {
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *StatusCache) Set(ctx context.Context, orderID, payload string) {
	_ = c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), payload, TTLStatusCache).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) {
	_ = c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
