package model

import "time"

// OrderStatus enumerates the buyer-facing order states.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderExpired   OrderStatus = "expired"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentStatus tracks the payment side of an order independently of
// its lifecycle status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// SeatedItem lists the physical units an order holds within one layout.
// Orders may span several layouts (e.g. a combined ticket), hence the
// slice on Order.
type SeatedItem struct {
	LayoutID uint64   `json:"layout_id"`
	UnitUIDs []string `json:"unit_uids"`
}

// Order is the checkout aggregate.  While Status is pending every
// referenced unit must be held; once ExpiresAt passes without payment
// the expiration cascade releases the units, cancels the pending
// tickets, returns the quota quantities and marks the order expired.
//
// SeatedItems and Items are stored as JSON columns, mirroring how the
// checkout flow snapshots them at order creation.
type Order struct {
	ID            uint64        // orders.id
	OrderNumber   string        // orders.order_number (external reference)
	Status        OrderStatus   // orders.status
	PaymentStatus PaymentStatus // orders.payment_status
	ExpiresAt     time.Time     // orders.expires_at
	SeatedItems   []SeatedItem  // orders.seated_items (JSON)
	Items         []QuotaItem   // orders.items (JSON)
	CreatedAt     time.Time     // orders.created_at
	UpdatedAt     time.Time     // orders.updated_at
}
