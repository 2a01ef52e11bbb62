package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-inventory/internal/model"
	"github.com/iliyamo/ticket-inventory/internal/queue"
	"github.com/iliyamo/ticket-inventory/internal/repository"
)

// fakeWorld is an in-memory implementation of every store interface the
// service layer consumes.  WithTx takes a snapshot of the whole world
// and restores it when the closure fails, mirroring the commit/rollback
// contract of the MySQL repositories.
type fakeWorld struct {
	units   map[string]*model.InventoryUnit
	holds   []model.Hold
	quotas  map[uint64]*model.TicketType
	tickets map[uint64][]model.TicketStatus
	orders  map[uint64]*model.Order

	// error injection, keyed by layoutID:unitUID
	failRelease map[string]error

	txDepth int
	saved   *fakeWorld

	releasedEvents []queue.HoldsReleasedEvent
	expiredEvents  []queue.OrderExpiredEvent
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		units:       make(map[string]*model.InventoryUnit),
		quotas:      make(map[uint64]*model.TicketType),
		tickets:     make(map[uint64][]model.TicketStatus),
		orders:      make(map[uint64]*model.Order),
		failRelease: make(map[string]error),
	}
}

func unitKey(layoutID uint64, unitUID string) string {
	return fmt.Sprintf("%d:%s", layoutID, unitUID)
}

func (w *fakeWorld) addUnit(layoutID uint64, uid string, status model.UnitStatus, version uint64) {
	w.units[unitKey(layoutID, uid)] = &model.InventoryUnit{
		LayoutID: layoutID,
		UnitUID:  uid,
		Status:   status,
		Version:  version,
	}
}

func (w *fakeWorld) addQuota(id uint64, total, sold uint64) {
	w.quotas[id] = &model.TicketType{ID: id, QuotaTotal: total, QuotaSold: sold}
}

func (w *fakeWorld) unit(layoutID uint64, uid string) model.InventoryUnit {
	return *w.units[unitKey(layoutID, uid)]
}

// clone deep-copies the mutable state; injected errors and recorded
// events survive rollback untouched.
func (w *fakeWorld) clone() *fakeWorld {
	c := newFakeWorld()
	for k, u := range w.units {
		cu := *u
		c.units[k] = &cu
	}
	c.holds = append([]model.Hold(nil), w.holds...)
	for id, q := range w.quotas {
		cq := *q
		c.quotas[id] = &cq
	}
	for id, ts := range w.tickets {
		c.tickets[id] = append([]model.TicketStatus(nil), ts...)
	}
	for id, o := range w.orders {
		co := *o
		co.SeatedItems = append([]model.SeatedItem(nil), o.SeatedItems...)
		co.Items = append([]model.QuotaItem(nil), o.Items...)
		c.orders[id] = &co
	}
	return c
}

func (w *fakeWorld) restore(saved *fakeWorld) {
	w.units = saved.units
	w.holds = saved.holds
	w.quotas = saved.quotas
	w.tickets = saved.tickets
	w.orders = saved.orders
}

// WithTx implements the UnitStore transaction contract: nested calls
// join the outer scope; only the outermost failure rolls back.
func (w *fakeWorld) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if w.txDepth == 0 {
		w.saved = w.clone()
	}
	w.txDepth++
	err := fn(ctx)
	w.txDepth--
	if w.txDepth == 0 {
		if err != nil {
			w.restore(w.saved)
		}
		w.saved = nil
	}
	return err
}

func (w *fakeWorld) LockUnits(_ context.Context, layoutID uint64, unitUIDs []string) ([]model.InventoryUnit, error) {
	out := make([]model.InventoryUnit, 0, len(unitUIDs))
	for _, uid := range unitUIDs {
		u, ok := w.units[unitKey(layoutID, uid)]
		if !ok {
			return nil, repository.ErrUnitNotFound
		}
		out = append(out, *u)
	}
	return out, nil
}

func (w *fakeWorld) Transition(_ context.Context, layoutID uint64, unitUID string, from, to model.UnitStatus, version uint64) error {
	u, ok := w.units[unitKey(layoutID, unitUID)]
	if !ok || u.Status != from || u.Version != version {
		return repository.ErrVersionConflict
	}
	u.Status = to
	u.Version++
	return nil
}

func (w *fakeWorld) ReleaseIfHeld(_ context.Context, layoutID uint64, unitUID string) (bool, error) {
	if err := w.failRelease[unitKey(layoutID, unitUID)]; err != nil {
		return false, err
	}
	u, ok := w.units[unitKey(layoutID, unitUID)]
	if !ok || u.Status != model.UnitHeld {
		return false, nil
	}
	u.Status = model.UnitAvailable
	u.Version++
	return true, nil
}

func (w *fakeWorld) CreateBatch(_ context.Context, holds []model.Hold) error {
	w.holds = append(w.holds, holds...)
	return nil
}

func (w *fakeWorld) ListUnits(_ context.Context, layoutID uint64, unitUIDs []string) ([]model.Hold, error) {
	want := make(map[string]bool, len(unitUIDs))
	for _, uid := range unitUIDs {
		want[uid] = true
	}
	var out []model.Hold
	for _, h := range w.holds {
		if h.LayoutID == layoutID && want[h.UnitUID] {
			out = append(out, h)
		}
	}
	return out, nil
}

func (w *fakeWorld) DeleteUnits(_ context.Context, layoutID uint64, unitUIDs []string) error {
	drop := make(map[string]bool, len(unitUIDs))
	for _, uid := range unitUIDs {
		drop[uid] = true
	}
	kept := w.holds[:0]
	for _, h := range w.holds {
		if h.LayoutID == layoutID && drop[h.UnitUID] {
			continue
		}
		kept = append(kept, h)
	}
	w.holds = kept
	return nil
}

func (w *fakeWorld) ListExpired(_ context.Context, cutoff time.Time, limit int) ([]model.Hold, error) {
	var out []model.Hold
	for _, h := range w.holds {
		if h.ExpiresAt.Before(cutoff) {
			out = append(out, h)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (w *fakeWorld) CountExpired(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, h := range w.holds {
		if h.ExpiresAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (w *fakeWorld) DeleteExpired(_ context.Context, h model.Hold, cutoff time.Time) error {
	kept := w.holds[:0]
	for _, row := range w.holds {
		if row.LayoutID == h.LayoutID && row.UnitUID == h.UnitUID &&
			row.HolderRef == h.HolderRef && row.ExpiresAt.Before(cutoff) {
			continue
		}
		kept = append(kept, row)
	}
	w.holds = kept
	return nil
}

func (w *fakeWorld) IncrementSold(_ context.Context, ticketTypeID uint64, qty uint64) error {
	q, ok := w.quotas[ticketTypeID]
	if !ok || q.QuotaSold+qty > q.QuotaTotal {
		return repository.ErrQuotaExceeded
	}
	q.QuotaSold += qty
	return nil
}

func (w *fakeWorld) DecrementSold(_ context.Context, ticketTypeID uint64, qty uint64) (bool, error) {
	q, ok := w.quotas[ticketTypeID]
	if !ok || q.QuotaSold < qty {
		return false, nil
	}
	q.QuotaSold -= qty
	return true, nil
}

func (w *fakeWorld) flipPending(orderID uint64, to model.TicketStatus) int64 {
	var n int64
	for i, st := range w.tickets[orderID] {
		if st == model.TicketPending {
			w.tickets[orderID][i] = to
			n++
		}
	}
	return n
}

func (w *fakeWorld) CancelPending(_ context.Context, orderID uint64) (int64, error) {
	return w.flipPending(orderID, model.TicketCancelled), nil
}

func (w *fakeWorld) ActivatePending(_ context.Context, orderID uint64) (int64, error) {
	return w.flipPending(orderID, model.TicketValid), nil
}

func (w *fakeWorld) CountPending(_ context.Context, orderID uint64) (int64, error) {
	var n int64
	for _, st := range w.tickets[orderID] {
		if st == model.TicketPending {
			n++
		}
	}
	return n, nil
}

func (w *fakeWorld) ListExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range w.orders {
		if o.Status == model.OrderPending && o.PaymentStatus == model.PaymentPending && o.ExpiresAt.Before(cutoff) {
			out = append(out, *o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (w *fakeWorld) MarkExpired(_ context.Context, orderID uint64) error {
	o, ok := w.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status == model.OrderPending {
		o.Status = model.OrderExpired
	}
	return nil
}

func (w *fakeWorld) PublishHoldsReleased(_ context.Context, ev queue.HoldsReleasedEvent) error {
	w.releasedEvents = append(w.releasedEvents, ev)
	return nil
}

func (w *fakeWorld) PublishOrderExpired(_ context.Context, ev queue.OrderExpiredEvent) error {
	w.expiredEvents = append(w.expiredEvents, ev)
	return nil
}
