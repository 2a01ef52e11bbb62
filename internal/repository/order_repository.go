package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/ticket-inventory/internal/model"
)

// OrderRepo provides the order queries the expiration cascade needs.
// The checkout flow that creates and pays orders lives outside this
// service; here orders are only read, and their status is only ever
// advanced pending→expired under a guard.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// ListExpiredPending returns up to limit orders that are still pending
// on both the lifecycle and the payment side with expires_at in the
// past, oldest first.  Each returned order carries its seated items and
// quota items decoded from the JSON columns.
func (r *OrderRepo) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	const q = `SELECT id, order_number, status, payment_status, expires_at, seated_items, items, created_at, updated_at
	           FROM orders
	           WHERE status = ? AND payment_status = ? AND expires_at < ?
	           ORDER BY expires_at LIMIT ?`
	rows, err := querierFor(ctx, r.db).QueryContext(ctx, q,
		model.OrderPending, model.PaymentPending, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID loads a single order.
func (r *OrderRepo) GetByID(ctx context.Context, orderID uint64) (*model.Order, error) {
	const q = `SELECT id, order_number, status, payment_status, expires_at, seated_items, items, created_at, updated_at
	           FROM orders WHERE id = ?`
	row := querierFor(ctx, r.db).QueryRowContext(ctx, q, orderID)
	o, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// MarkExpired advances an order to expired only while it is still
// pending.  Zero affected rows means another worker already expired or
// completed it, which keeps cascade re-runs inert.
func (r *OrderRepo) MarkExpired(ctx context.Context, orderID uint64) error {
	const q = `UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	_, err := querierFor(ctx, r.db).ExecContext(ctx, q, model.OrderExpired, orderID, model.OrderPending)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(rows *sql.Rows) (model.Order, error) { return scanOrderFrom(rows) }

func scanOrderRow(row *sql.Row) (model.Order, error) { return scanOrderFrom(row) }

func scanOrderFrom(s rowScanner) (model.Order, error) {
	var o model.Order
	var seatedJSON, itemsJSON []byte
	if err := s.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.ExpiresAt,
		&seatedJSON, &itemsJSON, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return model.Order{}, err
	}
	if len(seatedJSON) > 0 {
		if err := json.Unmarshal(seatedJSON, &o.SeatedItems); err != nil {
			return model.Order{}, err
		}
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return model.Order{}, err
		}
	}
	return o, nil
}
