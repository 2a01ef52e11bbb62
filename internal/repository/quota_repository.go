package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ticket-inventory/internal/model"
)

// QuotaRepo maintains the (quota_sold, quota_total) counter pair on
// ticket_types.  Both bounds live inside the UPDATE predicates, so the
// counters stay within [0, quota_total] even under concurrent
// increments and decrements.
type QuotaRepo struct {
	db *sql.DB
}

// NewQuotaRepo returns a QuotaRepo bound to the provided database.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

// IncrementSold raises quota_sold by qty, bounded by quota_total.  Zero
// affected rows means the increment would overshoot the quota (or the
// ticket type does not exist) and is reported as ErrQuotaExceeded,
// never clamped.
func (r *QuotaRepo) IncrementSold(ctx context.Context, ticketTypeID uint64, qty uint64) error {
	if qty == 0 {
		return nil
	}
	const q = `UPDATE ticket_types
	           SET quota_sold = quota_sold + ?
	           WHERE id = ? AND quota_sold + ? <= quota_total`
	res, err := querierFor(ctx, r.db).ExecContext(ctx, q, qty, ticketTypeID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// DecrementSold lowers quota_sold by qty, guarded against underflow.
// It reports false when the guard blocked the decrement (quota_sold was
// already below qty), which the cascade logs and skips rather than
// treating as fatal.  The guard exists to survive double-processing.
func (r *QuotaRepo) DecrementSold(ctx context.Context, ticketTypeID uint64, qty uint64) (bool, error) {
	if qty == 0 {
		return true, nil
	}
	const q = `UPDATE ticket_types
	           SET quota_sold = quota_sold - ?
	           WHERE id = ? AND quota_sold >= ?`
	res, err := querierFor(ctx, r.db).ExecContext(ctx, q, qty, ticketTypeID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID loads one ticket type with its quota counters.
func (r *QuotaRepo) GetByID(ctx context.Context, ticketTypeID uint64) (*model.TicketType, error) {
	const q = `SELECT id, name, quota_total, quota_sold FROM ticket_types WHERE id = ?`
	var t model.TicketType
	err := querierFor(ctx, r.db).QueryRowContext(ctx, q, ticketTypeID).
		Scan(&t.ID, &t.Name, &t.QuotaTotal, &t.QuotaSold)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
