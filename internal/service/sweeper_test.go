package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-inventory/internal/clock"
	"github.com/iliyamo/ticket-inventory/internal/model"
)

func TestSweepReleasesExpiredHolds(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)
	sweeper := NewSweeper(w, w, clk)

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1", "A2"}, "buyer-1", 10*time.Minute)
	require.NoError(t, err)

	clk.Advance(10*time.Minute + time.Second)

	report, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, SweepReport{Scanned: 2, Released: 2}, report)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A1").Status)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A2").Status)
	require.Empty(t, w.holds)

	// the pass converged; running again touches nothing
	report, err = sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, SweepReport{}, report)

	// a different holder can now take the swept seats
	set, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-2", time.Hour)
	require.NoError(t, err)
	require.Equal(t, "buyer-2", set.HolderRef)
}

func TestSweepLeavesLiveHoldsAlone(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)
	sweeper := NewSweeper(w, w, clk)

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 5*time.Minute)
	require.NoError(t, err)
	_, err = svc.PlaceHold(ctx, 1, []string{"A2"}, "buyer-2", time.Hour)
	require.NoError(t, err)

	clk.Advance(6 * time.Minute)

	report, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, SweepReport{Scanned: 1, Released: 1}, report)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A1").Status)
	require.Equal(t, model.UnitHeld, w.unit(1, "A2").Status)
	require.Len(t, w.holds, 1)
}

func TestSweepCountsAlreadyFree(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)
	sweeper := NewSweeper(w, w, clk)

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 5*time.Minute)
	require.NoError(t, err)

	// the TTL path got there first and released the unit, leaving the
	// ledger row behind
	_, err = w.ReleaseIfHeld(ctx, 1, "A1")
	require.NoError(t, err)
	clk.Advance(6 * time.Minute)

	report, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, SweepReport{Scanned: 1, AlreadyFree: 1}, report)
	require.Empty(t, w.holds)
}

func TestSweepDryRun(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)
	sweeper := NewSweeper(w, w, clk)

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1"}, "buyer-1", 5*time.Minute)
	require.NoError(t, err)
	clk.Advance(6 * time.Minute)

	report, err := sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	require.Equal(t, SweepReport{Scanned: 1}, report)

	// nothing changed
	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Len(t, w.holds, 1)
}

func TestSweepFailureIsolation(t *testing.T) {
	w := newFakeWorld()
	w.addUnit(1, "A1", model.UnitAvailable, 0)
	w.addUnit(1, "A2", model.UnitAvailable, 0)
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)
	sweeper := NewSweeper(w, w, clk)

	ctx := context.Background()
	_, err := svc.PlaceHold(ctx, 1, []string{"A1", "A2"}, "buyer-1", 5*time.Minute)
	require.NoError(t, err)
	clk.Advance(6 * time.Minute)

	w.failRelease[unitKey(1, "A1")] = errors.New("deadlock")

	report, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Released)

	// the failed row survives for the next pass
	require.Len(t, w.holds, 1)
	require.Equal(t, "A1", w.holds[0].UnitUID)
	require.Equal(t, model.UnitHeld, w.unit(1, "A1").Status)
	require.Equal(t, model.UnitAvailable, w.unit(1, "A2").Status)

	delete(w.failRelease, unitKey(1, "A1"))
	report, err = sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, SweepReport{Scanned: 1, Released: 1}, report)
	require.Empty(t, w.holds)
}

func TestSweepChunking(t *testing.T) {
	w := newFakeWorld()
	clk := clock.NewFixed(testStart)
	svc := newTestService(w, clk)
	sweeper := NewSweeper(w, w, clk, WithSweepChunk(2))

	ctx := context.Background()
	uids := []string{"A1", "A2", "A3", "A4", "A5"}
	for _, uid := range uids {
		w.addUnit(1, uid, model.UnitAvailable, 0)
	}
	_, err := svc.PlaceHold(ctx, 1, uids, "buyer-1", 5*time.Minute)
	require.NoError(t, err)
	clk.Advance(6 * time.Minute)

	report, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 5, report.Released)
	require.Empty(t, w.holds)
}
