package redisx

import "time"

const (
	// Cache status transaksi: txn_status:{transaction_id} -> JSON ringkas
	KeyTxnStatus = "txn_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
