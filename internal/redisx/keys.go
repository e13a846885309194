package redisx

import "time"

const (
	// Cart per session: pb_cart:{session_id} -> {"items":[...]}
	KeyCart = "pb_cart:%s"

	// Cache order by id: order_status:{order_id} -> order JSON
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart        = 30 * 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
