package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ticket-inventory/internal/model"
)

// TicketRepo manages provisional tickets under an order.  Both state
// flips are conditional on the pending status, so neither the cascade
// nor payment confirmation can overwrite the other's outcome.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// CancelPending cancels every still-pending ticket of an order and
// returns how many rows changed.  Already valid or cancelled tickets
// are untouched.
func (r *TicketRepo) CancelPending(ctx context.Context, orderID uint64) (int64, error) {
	return r.flipPending(ctx, orderID, model.TicketCancelled)
}

// ActivatePending marks every still-pending ticket of an order valid,
// the payment-confirmed counterpart of CancelPending.
func (r *TicketRepo) ActivatePending(ctx context.Context, orderID uint64) (int64, error) {
	return r.flipPending(ctx, orderID, model.TicketValid)
}

// CountPending reports how many tickets of an order are still pending.
// Used by the cascade's dry-run mode.
func (r *TicketRepo) CountPending(ctx context.Context, orderID uint64) (int64, error) {
	const q = `SELECT COUNT(*) FROM tickets WHERE order_id = ? AND status = ?`
	var n int64
	if err := querierFor(ctx, r.db).QueryRowContext(ctx, q, orderID, model.TicketPending).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *TicketRepo) flipPending(ctx context.Context, orderID uint64, to model.TicketStatus) (int64, error) {
	const q = `UPDATE tickets SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE order_id = ? AND status = ?`
	res, err := querierFor(ctx, r.db).ExecContext(ctx, q, to, orderID, model.TicketPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
