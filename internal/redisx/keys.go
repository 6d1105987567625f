package redisx

import (
	"fmt"
	"time"
)

const (
	// Checkout replay: idem:checkout:{staff_id}:{idempotency_key} -> receipt JSON
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Cached order status: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%d"

	// Dedup of event processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func IdemCheckoutKey(staffID int64, key string) string {
	return fmt.Sprintf(KeyIdemCheckout, staffID, key)
}

func OrderStatusKey(orderID int64) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
