package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/ticket-inventory/internal/clock"
	"github.com/iliyamo/ticket-inventory/internal/model"
	"github.com/iliyamo/ticket-inventory/internal/queue"
)

const defaultOrderChunk = 50

// OrderExpirer is the expiration cascade for abandoned checkouts: it
// finds orders still pending on both the lifecycle and payment side
// past their deadline and, in one transaction per order, releases the
// held units, cancels the pending tickets, returns the quota
// quantities and marks the order expired.  Orders fail independently;
// one bad order never stops the batch.
type OrderExpirer struct {
	units   UnitStore
	ledger  HoldLedger
	orders  OrderStore
	tickets TicketStore
	quotas  QuotaStore
	clk     clock.Clock
	chunk   int
	events  EventPublisher
}

// OrderExpirerOption configures an OrderExpirer.
type OrderExpirerOption func(*OrderExpirer)

// WithOrderChunk bounds how many orders one scan fetches.
func WithOrderChunk(n int) OrderExpirerOption {
	return func(e *OrderExpirer) {
		if n > 0 {
			e.chunk = n
		}
	}
}

// WithOrderEventPublisher enables best-effort order.expired events.
func WithOrderEventPublisher(p EventPublisher) OrderExpirerOption {
	return func(e *OrderExpirer) { e.events = p }
}

// NewOrderExpirer wires the cascade over the given stores.
func NewOrderExpirer(units UnitStore, ledger HoldLedger, orders OrderStore, tickets TicketStore, quotas QuotaStore, clk clock.Clock, opts ...OrderExpirerOption) *OrderExpirer {
	e := &OrderExpirer{
		units:   units,
		ledger:  ledger,
		orders:  orders,
		tickets: tickets,
		quotas:  quotas,
		clk:     clk,
		chunk:   defaultOrderChunk,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OrderOutcome reports what the cascade did (or would do, in dry-run)
// to one order.
type OrderOutcome struct {
	OrderID          uint64
	OrderNumber      string
	ReleasedUnits    int
	AlreadyFree      int
	CancelledTickets int64
	RestoredQuota    uint64
	UnderflowSkips   int
	Err              string
}

// CascadeReport summarizes one cascade run.
type CascadeReport struct {
	Processed int
	Expired   int
	Failed    int
	Orders    []OrderOutcome
}

// Run processes expired pending orders in bounded chunks.  A failure in
// one order's transaction is caught, logged with the order identifiers
// and recorded in the report without aborting the remaining orders.  In
// dry-run mode it reports the effects of one bounded batch without
// committing anything.
func (e *OrderExpirer) Run(ctx context.Context, dryRun bool) (CascadeReport, error) {
	now := e.clk.Now()
	var report CascadeReport

	if dryRun {
		orders, err := e.orders.ListExpiredPending(ctx, now, e.chunk)
		if err != nil {
			return report, err
		}
		for _, o := range orders {
			outcome := OrderOutcome{OrderID: o.ID, OrderNumber: o.OrderNumber}
			for _, item := range o.SeatedItems {
				outcome.ReleasedUnits += len(item.UnitUIDs)
			}
			pending, err := e.tickets.CountPending(ctx, o.ID)
			if err != nil {
				outcome.Err = err.Error()
			} else {
				outcome.CancelledTickets = pending
			}
			for _, item := range o.Items {
				outcome.RestoredQuota += item.Quantity
			}
			report.Processed++
			report.Orders = append(report.Orders, outcome)
		}
		return report, nil
	}

	for {
		orders, err := e.orders.ListExpiredPending(ctx, now, e.chunk)
		if err != nil {
			return report, err
		}
		if len(orders) == 0 {
			break
		}

		progress := 0
		for _, o := range orders {
			report.Processed++
			outcome, err := e.expireOrder(ctx, o)
			if err != nil {
				log.Printf("order-expirer: order %d (%s) failed: %v", o.ID, o.OrderNumber, err)
				outcome.Err = err.Error()
				report.Failed++
				report.Orders = append(report.Orders, outcome)
				continue
			}
			report.Expired++
			report.Orders = append(report.Orders, outcome)
			progress++

			if e.events != nil {
				ev := queue.OrderExpiredEvent{
					OrderID:          o.ID,
					OrderNumber:      o.OrderNumber,
					ReleasedUnits:    outcome.ReleasedUnits,
					CancelledTickets: outcome.CancelledTickets,
					RestoredQuota:    outcome.RestoredQuota,
					ExpiredAt:        now.Format(time.RFC3339),
				}
				if err := e.events.PublishOrderExpired(ctx, ev); err != nil {
					log.Printf("order-expirer: publish order.expired failed for order %d: %v", o.ID, err)
				}
			}
		}
		// Failed orders remain pending and would be returned again; stop
		// when a pass makes no progress.
		if progress == 0 {
			break
		}
		if len(orders) < e.chunk {
			break
		}
	}
	return report, nil
}

// expireOrder performs the full cascade for one order in a single
// transaction: seat release, ticket cancellation, quota restoration,
// status flip.  Every step is idempotent, so re-processing an order
// after a partial failure converges to the same end state.
func (e *OrderExpirer) expireOrder(ctx context.Context, o model.Order) (OrderOutcome, error) {
	outcome := OrderOutcome{OrderID: o.ID, OrderNumber: o.OrderNumber}
	err := e.units.WithTx(ctx, func(txCtx context.Context) error {
		for _, item := range o.SeatedItems {
			for _, uid := range item.UnitUIDs {
				released, err := e.units.ReleaseIfHeld(txCtx, item.LayoutID, uid)
				if err != nil {
					return err
				}
				if released {
					outcome.ReleasedUnits++
				} else {
					outcome.AlreadyFree++
				}
			}
			if err := e.ledger.DeleteUnits(txCtx, item.LayoutID, item.UnitUIDs); err != nil {
				return err
			}
		}

		cancelled, err := e.tickets.CancelPending(txCtx, o.ID)
		if err != nil {
			return err
		}
		outcome.CancelledTickets = cancelled

		for _, item := range o.Items {
			ok, err := e.quotas.DecrementSold(txCtx, item.TicketTypeID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				// Underflow guard: quota_sold would go below zero, likely a
				// double-processed order. Logged and skipped, never fatal.
				log.Printf("order-expirer: underflow guard hit for order %d ticket_type %d qty %d",
					o.ID, item.TicketTypeID, item.Quantity)
				outcome.UnderflowSkips++
				continue
			}
			outcome.RestoredQuota += item.Quantity
		}

		return e.orders.MarkExpired(txCtx, o.ID)
	})
	if err != nil {
		return OrderOutcome{OrderID: o.ID, OrderNumber: o.OrderNumber}, err
	}
	return outcome, nil
}
