package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-inventory/internal/clock"
	"github.com/iliyamo/ticket-inventory/internal/holdstore"
	"github.com/iliyamo/ticket-inventory/internal/model"
)

var testStart = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(w *fakeWorld, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	return NewHoldService(w, w, w, w, clk, opts...)
}

func TestPlaceHold(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 3)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)

	set, err := svc.PlaceHold(context.Background(), 1, []string{"A1", "A2"}, "buyer-1", 0)
	require.NoError(t, err)
	require.Equal(t, "buyer-1", set.HolderRef)
	require.Equal(t, testStart.Add(15*time.Minute), set.ExpiresAt)
	require.Len(t, set.Units, 2)

	// versions in the set are post-transition
	require.Equal(t, uint64(1), set.Units[0].Version)
	require.Equal(t, uint64(4), set.Units[1].Version)

	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Equal(t, model.UnitHeld, w.unit(1, "A2").Status)
	require.Len(t, w.holds, 2)
	require.Equal(t, "buyer-1", w.holds[0].HolderRef)
}

func TestPlaceHoldGeneratesHolderRef(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	set, err := svc.PlaceHold(context.Background(), 1, []string{"A1"}, "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, set.HolderRef)
}

func TestPlaceHoldDedupesUnits(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	set, err := svc.PlaceHold(context.Background(), 1, []string{"A1", "A1", ""}, "buyer-1", 0)
	require.NoError(t, err)
	require.Len(t, set.Units, 1)
	require.Len(t, w.holds, 1)
}

func TestPlaceHoldEmptySet(t *testing.T) {
	w := newFakeWorld()
	svc := newTestService(w, clock.NewFixed(testStart))

	_, err := svc.PlaceHold(context.Background(), 1, nil, "buyer-1", 0)
	require.ErrorIs(t, err, ErrEmptyHoldSet)
}

func TestPlaceHoldAllOrNothing(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitHeld, 5)
	w.addUnit(1, "A3", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	_, err := svc.PlaceHold(context.Background(), 1, []string{"A1", "A2", "A3"}, "buyer-1", 0)
	var conflict *HoldConflictError
	require.ErrorAs(t, err, &conflict)
	require.ErrorIs(t, err, ErrHoldConflict)
	require.Equal(t, []string{"A2"}, conflict.Unavailable)

	// nothing committed: A1 and A3 stay available at their old versions
	require.Equal(t, model.UnitAvailable, w.unit(1, "A1").Status)
	require.Equal(t, uint64(0), w.unit(1, "A1").Version)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A3").Status)
	require.Empty(t, w.holds)
}

func TestPlaceHoldUnknownUnit(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	_, err := svc.PlaceHold(context.Background(), 1, []string{"A1", "ZZ"}, "buyer-1", 0)
	require.ErrorIs(t, err, ErrHoldConflict)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A1").Status)
}

func TestPlaceHoldDoubleSellRace(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	_, err := svc.PlaceHold(context.Background(), 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	_, err = svc.PlaceHold(context.Background(), 1, []string{"A1"}, "buyer-2", 0)
	require.ErrorIs(t, err, ErrHoldConflict)

	// still exactly one ledger row, owned by the first buyer
	require.Len(t, w.holds, 1)
	require.Equal(t, "buyer-1", w.holds[0].HolderRef)
}

func TestPlaceHoldWritesTTLKeys(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	store := holdstore.NewMemoryStore(clk)
	svc := newTestService(w, clk, WithExpiringStore(store), WithHoldTTL(5*time.Minute))

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	ok, err := store.Exists(ctx, holdstore.Key(1, "A1"))
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(5*time.Minute + time.Second)
	ok, err = store.Exists(ctx, holdstore.Key(1, "A1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConfirmSale(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 0)
	w.addQuota(7, 10, 2)
	w.tickets[42] = []model.TicketStatus{model.TicketPending, model.TicketPending}
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1", "A2"}, "buyer-1", 0)
	require.NoError(t, err)

	err = svc.ConfirmSale(ctx, ConfirmInput{
		Set:     set,
		Items:   []model.QuotaItem{{TicketTypeID: 7, Quantity: 2}},
		OrderID: 42,
	})
	require.NoError(t, err)

	require.Equal(t, model.UnitSold, w.unit(1, "A1").Status)
	require.Equal(t, uint64(2), w.unit(1, "A1").Version)
	require.Equal(t, model.UnitSold, w.unit(1, "A2").Status)
	require.Equal(t, uint64(4), w.quotas[7].QuotaSold)
	require.Empty(t, w.holds)
	require.Equal(t, []model.TicketStatus{model.TicketValid, model.TicketValid}, w.tickets[42])
}

func TestConfirmSaleStaleHold(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 0)
	w.addQuota(7, 10, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1", "A2"}, "buyer-1", 0)
	require.NoError(t, err)

	// A2 expires and is re-held by someone else; its version moves on
	_, err = w.ReleaseIfHeld(ctx, 1, "A2")
	require.NoError(t, err)
	require.NoError(t, w.Transition(ctx, 1, "A2", model.UnitAvailable, model.UnitHeld, 2))

	err = svc.ConfirmSale(ctx, ConfirmInput{
		Set:   set,
		Items: []model.QuotaItem{{TicketTypeID: 7, Quantity: 2}},
	})
	var stale *StaleHoldError
	require.ErrorAs(t, err, &stale)
	require.ErrorIs(t, err, ErrStaleHold)
	require.Equal(t, "A2", stale.UnitUID)

	// the whole confirmation rolled back: A1 is still held, not sold
	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Equal(t, uint64(1), w.unit(1, "A1").Version)
	require.Equal(t, uint64(0), w.quotas[7].QuotaSold)
}

func TestConfirmSaleQuotaExceeded(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addQuota(7, 5, 5)
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	err = svc.ConfirmSale(ctx, ConfirmInput{
		Set:   set,
		Items: []model.QuotaItem{{TicketTypeID: 7, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// rolled back: the unit stays held and the ledger row survives
	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Equal(t, uint64(5), w.quotas[7].QuotaSold)
	require.Len(t, w.holds, 1)
}

func TestConfirmSaleDoubleConfirm(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmSale(ctx, ConfirmInput{Set: set}))
	err = svc.ConfirmSale(ctx, ConfirmInput{Set: set})
	require.ErrorIs(t, err, ErrStaleHold)
	require.Equal(t, model.UnitSold, w.unit(1, "A1").Status)
}

func TestReleaseHoldIdempotent(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk, WithEventPublisher(w))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1", "A2"}, "buyer-1", 0)
	require.NoError(t, err)

	report, err := svc.ReleaseHold(ctx, set)
	require.NoError(t, err)
	require.Equal(t, ReleaseReport{Released: 2, AlreadyFree: 0}, report)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A1").Status)
	require.Empty(t, w.holds)
	require.Len(t, w.releasedEvents, 1)
	require.Equal(t, "release", w.releasedEvents[0].Source)

	// second release finds nothing held; no error, no event
	report, err = svc.ReleaseHold(ctx, set)
	require.NoError(t, err)
	require.Equal(t, ReleaseReport{Released: 0, AlreadyFree: 2}, report)
	require.Len(t, w.releasedEvents, 1)
}

func TestReleaseHoldScopedToHolder(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart), WithEventPublisher(w))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	// a rival naming the same unit under its own reference releases
	// nothing: the unit stays held and the owner's ledger row survives
	rival := model.HoldSet{
		LayoutID:  1,
		HolderRef: "buyer-2",
		Units:     []model.HeldUnit{{UnitUID: "A1"}},
	}
	report, err := svc.ReleaseHold(ctx, rival)
	require.NoError(t, err)
	require.Equal(t, ReleaseReport{Released: 0, AlreadyFree: 1}, report)
	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Len(t, w.holds, 1)
	require.Equal(t, "buyer-1", w.holds[0].HolderRef)
	require.Empty(t, w.releasedEvents)

	// the owner still can
	report, err = svc.ReleaseHold(ctx, set)
	require.NoError(t, err)
	require.Equal(t, ReleaseReport{Released: 1, AlreadyFree: 0}, report)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A1").Status)
	require.Empty(t, w.holds)
}

func TestReleaseHoldScopedTTLKeys(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	store := holdstore.NewMemoryStore(clk)
	svc := newTestService(w, clk, WithExpiringStore(store))

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	rival := model.HoldSet{
		LayoutID:  1,
		HolderRef: "buyer-2",
		Units:     []model.HeldUnit{{UnitUID: "A1"}},
	}
	_, err = svc.ReleaseHold(ctx, rival)
	require.NoError(t, err)

	// the owner's TTL key is not for a rival to delete
	ok, err := store.Exists(ctx, holdstore.Key(1, "A1"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReleaseHoldNeverRevivesSoldUnit(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmSale(ctx, ConfirmInput{Set: set}))

	report, err := svc.ReleaseHold(ctx, set)
	require.NoError(t, err)
	require.Equal(t, ReleaseReport{Released: 0, AlreadyFree: 1}, report)
	require.Equal(t, model.UnitSold, w.unit(1, "A1").Status)
}

func TestVersionMonotonicity(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	last := uint64(0)
	for i := 0; i < 3; i++ {
		set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer", 0)
		require.NoError(t, err)
		require.Greater(t, set.Units[0].Version, last)
		last = set.Units[0].Version

		_, err = svc.ReleaseHold(ctx, set)
		require.NoError(t, err)
		require.Greater(t, w.unit(1, "A1").Version, last)
		last = w.unit(1, "A1").Version
	}
}

func TestReleaseHoldPropagatesStoreError(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	svc := newTestService(w, clock.NewFixed(testStart))

	ctx := context.Background()
	set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 0)
	require.NoError(t, err)

	boom := errors.New("connection lost")
	w.failRelease[unitKey(1, "A1")] = boom
	_, err = svc.ReleaseHold(ctx, set)
	require.ErrorIs(t, err, boom)

	// rolled back, ledger row intact
	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Len(t, w.holds, 1)
}
