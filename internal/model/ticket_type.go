package model

// TicketType carries the quota counters for one ticket category.  The
// invariant 0 <= QuotaSold <= QuotaTotal holds at all times; the
// repository enforces both bounds inside the conditional updates rather
// than in application code.
type TicketType struct {
	ID         uint64 // ticket_types.id
	Name       string // ticket_types.name
	QuotaTotal uint64 // ticket_types.quota_total
	QuotaSold  uint64 // ticket_types.quota_sold
}

// QuotaItem is a ticket-type quantity attached to an order.  Confirming
// a sale increments the type's sold counter by Quantity; expiring the
// order decrements it again, guarded against underflow.
type QuotaItem struct {
	TicketTypeID uint64 `json:"ticket_type_id"`
	Quantity     uint64 `json:"quantity"`
}
