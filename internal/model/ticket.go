package model

import "time"

// TicketStatus enumerates provisional ticket states.  Tickets are
// created pending alongside the order, become valid when payment is
// confirmed and are cancelled by the expiration cascade otherwise.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketValid     TicketStatus = "valid"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket is one provisional ticket issued under an order, one per sold
// unit or quota seat.
type Ticket struct {
	ID        uint64       // tickets.id
	OrderID   uint64       // tickets.order_id
	Status    TicketStatus // tickets.status
	CreatedAt time.Time    // tickets.created_at
	UpdatedAt time.Time    // tickets.updated_at
}
