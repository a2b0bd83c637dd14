package redisx

import "time"

const (
	// Order status read cache: order_status:{order_id} -> JSON blob
	// served by the polling endpoint.
	KeyOrderStatus = "order_status:%d"

	// Event dedup marks: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
