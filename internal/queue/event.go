// Package queue defines message payloads exchanged over the message broker.
package queue

// HoldsReleasedEvent is published when held units return to the
// available pool, whether through an explicit release, the fallback
// sweeper or the order expiration cascade.  Source names the path that
// performed the release so downstream consumers can tell a benign race
// (already released) from an actual reclaim.
type HoldsReleasedEvent struct {
	LayoutID    uint64   `json:"layout_id"`
	UnitUIDs    []string `json:"unit_uids"`
	HolderRef   string   `json:"holder_ref"`
	Released    int      `json:"released"`
	AlreadyFree int      `json:"already_free"`
	Source      string   `json:"source"`
	ReleasedAt  string   `json:"released_at"`
}

// OrderExpiredEvent is published after the expiration cascade has
// committed one order.  It carries enough identifiers for notification
// and analytics consumers without querying the primary database.
type OrderExpiredEvent struct {
	OrderID          uint64 `json:"order_id"`
	OrderNumber      string `json:"order_number"`
	ReleasedUnits    int    `json:"released_units"`
	CancelledTickets int64  `json:"cancelled_tickets"`
	RestoredQuota    uint64 `json:"restored_quota"`
	ExpiredAt        string `json:"expired_at"`
}
