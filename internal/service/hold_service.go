package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-inventory/internal/clock"
	"github.com/iliyamo/ticket-inventory/internal/holdstore"
	"github.com/iliyamo/ticket-inventory/internal/model"
	"github.com/iliyamo/ticket-inventory/internal/queue"
	"github.com/iliyamo/ticket-inventory/internal/repository"
)

// UnitStore is the service-facing view of the inventory unit store.
// Transition must return repository.ErrVersionConflict when the
// conditional update matches zero rows; WithTx must commit on nil and
// roll back otherwise, with nested calls joining the outer transaction.
type UnitStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockUnits(ctx context.Context, layoutID uint64, unitUIDs []string) ([]model.InventoryUnit, error)
	Transition(ctx context.Context, layoutID uint64, unitUID string, from, to model.UnitStatus, version uint64) error
	ReleaseIfHeld(ctx context.Context, layoutID uint64, unitUID string) (bool, error)
}

// HoldLedger is the durable record of outstanding holds.
type HoldLedger interface {
	CreateBatch(ctx context.Context, holds []model.Hold) error
	ListUnits(ctx context.Context, layoutID uint64, unitUIDs []string) ([]model.Hold, error)
	DeleteUnits(ctx context.Context, layoutID uint64, unitUIDs []string) error
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Hold, error)
	CountExpired(ctx context.Context, cutoff time.Time) (int, error)
	DeleteExpired(ctx context.Context, h model.Hold, cutoff time.Time) error
}

// QuotaStore maintains per-ticket-type sold counters.  IncrementSold
// must return repository.ErrQuotaExceeded when the bound would be
// crossed; DecrementSold reports false when the underflow guard blocked
// the decrement.
type QuotaStore interface {
	IncrementSold(ctx context.Context, ticketTypeID uint64, qty uint64) error
	DecrementSold(ctx context.Context, ticketTypeID uint64, qty uint64) (bool, error)
}

// TicketStore flips provisional tickets under an order.
type TicketStore interface {
	CancelPending(ctx context.Context, orderID uint64) (int64, error)
	ActivatePending(ctx context.Context, orderID uint64) (int64, error)
	CountPending(ctx context.Context, orderID uint64) (int64, error)
}

// OrderStore exposes the order queries the expiration cascade needs.
type OrderStore interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
	MarkExpired(ctx context.Context, orderID uint64) error
}

// EventPublisher sends domain events after a commit.  Publishing is
// best effort; failures must not unwind the committed transition.
type EventPublisher interface {
	PublishHoldsReleased(ctx context.Context, ev queue.HoldsReleasedEvent) error
	PublishOrderExpired(ctx context.Context, ev queue.OrderExpiredEvent) error
}

const defaultHoldTTL = 15 * time.Minute

// HoldService owns the available→held→sold state machine.  It is the
// only path that creates holds: every held unit has passed through
// PlaceHold's compare-and-swap inside a single transaction.
type HoldService struct {
	units    UnitStore
	ledger   HoldLedger
	quotas   QuotaStore
	tickets  TicketStore
	clk      clock.Clock
	holdTTL  time.Duration
	ttlStore holdstore.ExpiringStore
	events   EventPublisher
}

// HoldServiceOption configures optional collaborators.
type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default TTL applied when PlaceHold is
// called with a non-positive ttl.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithExpiringStore enables the TTL key-value mirror.  Without it the
// fallback sweeper is the sole expiry mechanism.
func WithExpiringStore(store holdstore.ExpiringStore) HoldServiceOption {
	return func(s *HoldService) { s.ttlStore = store }
}

// WithEventPublisher enables best-effort release events.
func WithEventPublisher(p EventPublisher) HoldServiceOption {
	return func(s *HoldService) { s.events = p }
}

// NewHoldService wires the reservation core.  units, ledger, quotas and
// tickets must be non-nil and share one transactional scope through
// UnitStore.WithTx.
func NewHoldService(units UnitStore, ledger HoldLedger, quotas QuotaStore, tickets TicketStore, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	if units == nil || ledger == nil || quotas == nil || tickets == nil {
		panic("nil store passed to NewHoldService")
	}
	s := &HoldService{
		units:   units,
		ledger:  ledger,
		quotas:  quotas,
		tickets: tickets,
		clk:     clk,
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceHold reserves the requested units for holderRef, all or nothing.
// Every unit must currently be available; the batch runs in a single
// transaction so a conflict on any unit rolls the whole set back.  On
// success the hold ledger carries one row per unit, and (when the TTL
// store is enabled) one expiring key per unit mirrors the deadline.  An
// empty holderRef is replaced with a generated reference.
func (s *HoldService) PlaceHold(ctx context.Context, layoutID uint64, unitUIDs []string, holderRef string, ttl time.Duration) (model.HoldSet, error) {
	uids := dedupe(unitUIDs)
	if len(uids) == 0 {
		return model.HoldSet{}, ErrEmptyHoldSet
	}
	if holderRef == "" {
		holderRef = uuid.NewString()
	}
	if ttl <= 0 {
		ttl = s.holdTTL
	}
	now := s.clk.Now()
	expiresAt := now.Add(ttl)

	set := model.HoldSet{LayoutID: layoutID, HolderRef: holderRef, ExpiresAt: expiresAt}
	err := s.units.WithTx(ctx, func(txCtx context.Context) error {
		units, err := s.units.LockUnits(txCtx, layoutID, uids)
		if err != nil {
			if errors.Is(err, repository.ErrUnitNotFound) {
				return &HoldConflictError{Unavailable: uids}
			}
			return err
		}
		byUID := make(map[string]model.InventoryUnit, len(units))
		var unavailable []string
		for _, u := range units {
			byUID[u.UnitUID] = u
			if u.Status != model.UnitAvailable {
				unavailable = append(unavailable, u.UnitUID)
			}
		}
		if len(unavailable) > 0 {
			return &HoldConflictError{Unavailable: unavailable}
		}

		holds := make([]model.Hold, 0, len(uids))
		for _, uid := range uids {
			u := byUID[uid]
			if err := s.units.Transition(txCtx, layoutID, uid, model.UnitAvailable, model.UnitHeld, u.Version); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					return &HoldConflictError{Unavailable: []string{uid}}
				}
				return err
			}
			holds = append(holds, model.Hold{
				LayoutID:  layoutID,
				UnitUID:   uid,
				HolderRef: holderRef,
				ExpiresAt: expiresAt,
				CreatedAt: now,
			})
			set.Units = append(set.Units, model.HeldUnit{UnitUID: uid, Version: u.Version + 1})
		}
		return s.ledger.CreateBatch(txCtx, holds)
	})
	if err != nil {
		return model.HoldSet{}, err
	}

	// TTL keys are written after commit: a key without a ledger row would
	// expire a hold that never existed, the reverse is covered by the
	// sweeper.
	if s.ttlStore != nil {
		for _, uid := range uids {
			if err := s.ttlStore.Set(ctx, holdstore.Key(layoutID, uid), ttl); err != nil {
				log.Printf("hold-service: ttl set failed for layout=%d unit=%s: %v", layoutID, uid, err)
			}
		}
	}
	return set, nil
}

// ConfirmInput names everything a confirmation touches: the hold set
// with the versions observed at placement, the ticket-type quantities
// to count as sold, and optionally the order whose pending tickets
// become valid in the same transaction.
type ConfirmInput struct {
	Set     model.HoldSet
	Items   []model.QuotaItem
	OrderID uint64
}

// ConfirmSale finalizes a hold set into sold units.  Each unit must
// still be held at the version the caller observed; any mismatch
// aborts the transaction with ErrStaleHold and the caller restarts
// checkout.  Quota counters are incremented bounded by quota_total,
// ledger rows removed, and TTL keys deleted after commit.
func (s *HoldService) ConfirmSale(ctx context.Context, in ConfirmInput) error {
	if len(in.Set.Units) == 0 {
		return ErrEmptyHoldSet
	}
	err := s.units.WithTx(ctx, func(txCtx context.Context) error {
		for _, u := range in.Set.Units {
			if err := s.units.Transition(txCtx, in.Set.LayoutID, u.UnitUID, model.UnitHeld, model.UnitSold, u.Version); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					return &StaleHoldError{UnitUID: u.UnitUID}
				}
				return err
			}
		}
		for _, item := range in.Items {
			if err := s.quotas.IncrementSold(txCtx, item.TicketTypeID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrQuotaExceeded) {
					return ErrQuotaExceeded
				}
				return err
			}
		}
		if err := s.ledger.DeleteUnits(txCtx, in.Set.LayoutID, in.Set.UnitUIDs()); err != nil {
			return err
		}
		if in.OrderID != 0 {
			if _, err := s.tickets.ActivatePending(txCtx, in.OrderID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.deleteTTLKeys(ctx, in.Set.LayoutID, in.Set.UnitUIDs())
	return nil
}

// ReleaseReport distinguishes units this call actually released from
// units that were already available, a benign race with the TTL
// expiry or the sweeper rather than an error.
type ReleaseReport struct {
	Released    int
	AlreadyFree int
}

// ReleaseHold returns a hold set's units to the available pool.  Only
// units whose ledger row belongs to the set's HolderRef are touched: a
// unit held by someone else, or with no ledger row at all, is counted
// as AlreadyFree and left alone, so one buyer can never strip a rival's
// hold.  The operation is idempotent; ledger rows and TTL keys are
// removed for the owned units only.
func (s *HoldService) ReleaseHold(ctx context.Context, set model.HoldSet) (ReleaseReport, error) {
	if len(set.Units) == 0 {
		return ReleaseReport{}, ErrEmptyHoldSet
	}
	var report ReleaseReport
	var owned []string
	err := s.units.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := s.ledger.ListUnits(txCtx, set.LayoutID, set.UnitUIDs())
		if err != nil {
			return err
		}
		mine := make(map[string]bool, len(rows))
		for _, h := range rows {
			if h.HolderRef == set.HolderRef {
				mine[h.UnitUID] = true
			}
		}
		for _, u := range set.Units {
			if !mine[u.UnitUID] {
				report.AlreadyFree++
				continue
			}
			released, err := s.units.ReleaseIfHeld(txCtx, set.LayoutID, u.UnitUID)
			if err != nil {
				return err
			}
			if released {
				report.Released++
			} else {
				report.AlreadyFree++
			}
			owned = append(owned, u.UnitUID)
		}
		return s.ledger.DeleteUnits(txCtx, set.LayoutID, owned)
	})
	if err != nil {
		return ReleaseReport{}, err
	}

	s.deleteTTLKeys(ctx, set.LayoutID, owned)
	if s.events != nil && report.Released > 0 {
		ev := queue.HoldsReleasedEvent{
			LayoutID:    set.LayoutID,
			UnitUIDs:    owned,
			HolderRef:   set.HolderRef,
			Released:    report.Released,
			AlreadyFree: report.AlreadyFree,
			Source:      "release",
			ReleasedAt:  s.clk.Now().Format(time.RFC3339),
		}
		if err := s.events.PublishHoldsReleased(ctx, ev); err != nil {
			log.Printf("hold-service: publish holds.released failed: %v", err)
		}
	}
	return report, nil
}

func (s *HoldService) deleteTTLKeys(ctx context.Context, layoutID uint64, unitUIDs []string) {
	if s.ttlStore == nil {
		return
	}
	for _, uid := range unitUIDs {
		if err := s.ttlStore.Delete(ctx, holdstore.Key(layoutID, uid)); err != nil {
			log.Printf("hold-service: ttl delete failed for layout=%d unit=%s: %v", layoutID, uid, err)
		}
	}
}

// dedupe drops empty and repeated unit UIDs while preserving order.
func dedupe(uids []string) []string {
	out := make([]string, 0, len(uids))
	seen := make(map[string]struct{}, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}
