package redisx

import "time"

const (
	// Cache of order status for cheap storefront polling:
	// order_status:{order_id} -> {"paymentStatus":"...","orderStatus":"..."}
	KeyOrderStatus = "order_status:%s"

	// Mutual exclusion while a webhook delivery is being reconciled:
	// reconcile:{order_id}. Held only for the duration of one reconciliation;
	// the durable duplicate guard is the conditional update on the order row.
	KeyReconcileLock = "reconcile:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLReconcileLock = 30 * time.Second
)
