package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache holds the API's short-lived state: checkout replays and the order
// status cache. Redis is an accelerator only; Postgres stays authoritative.
type Cache struct {
	RDB redis.Cmdable
}

func (c *Cache) Receipt(ctx context.Context, staffID int64, key string) (orders.Receipt, bool, error) {
	var rc orders.Receipt
	b, err := c.RDB.Get(ctx, IdemCheckoutKey(staffID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rc, false, nil
	}
	if err != nil {
		return rc, false, fmt.Errorf("get receipt: %w", err)
	}
	if err := json.Unmarshal(b, &rc); err != nil {
		return rc, false, fmt.Errorf("decode receipt: %w", err)
	}
	return rc, true, nil
}

func (c *Cache) PutReceipt(ctx context.Context, staffID int64, key string, rc orders.Receipt) error {
	b, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	return c.RDB.Set(ctx, IdemCheckoutKey(staffID, key), b, TTLIdempotency).Err()
}

type statusEntry struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (c *Cache) Status(ctx context.Context, orderID int64) (orders.Status, bool, error) {
	b, err := c.RDB.Get(ctx, OrderStatusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get order status: %w", err)
	}
	var e statusEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return "", false, fmt.Errorf("decode order status: %w", err)
	}
	return e.Status, true, nil
}

func (c *Cache) SetStatus(ctx context.Context, orderID int64, s orders.Status) error {
	b, err := json.Marshal(statusEntry{Status: s, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, OrderStatusKey(orderID), b, TTLStatusCache).Err()
}

func (c *Cache) InvalidateStatus(ctx context.Context, orderID int64) error {
	return c.RDB.Del(ctx, OrderStatusKey(orderID)).Err()
}

// Dedup marks id as processed by service. It reports false when id was
// already marked.
type Dedup struct {
	RDB     redis.Cmdable
	Service string
	TTL     time.Duration
}

func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	ok, err := d.RDB.SetNX(ctx, DedupKey(d.Service, id), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", id, err)
	}
	return ok, nil
}

// Forget clears a mark so a failed attempt can be retried.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, DedupKey(d.Service, id)).Err()
}
