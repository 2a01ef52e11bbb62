package service

import (
	"context"
	"log"

	"github.com/iliyamo/ticket-inventory/internal/clock"
)

const defaultSweepChunk = 100

// Sweeper is the fallback expiry mechanism: it scans the hold ledger
// for rows past their deadline and performs the same idempotent release
// transition as the hold service.  Deployments without the TTL store
// rely on it entirely; deployments with the store run it anyway as a
// second line of defense, since both paths release through the same
// status guard and can race safely.
type Sweeper struct {
	units  UnitStore
	ledger HoldLedger
	clk    clock.Clock
	chunk  int
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepChunk bounds how many ledger rows one scan fetches.
func WithSweepChunk(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// NewSweeper returns a Sweeper over the given stores.
func NewSweeper(units UnitStore, ledger HoldLedger, clk clock.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{units: units, ledger: ledger, clk: clk, chunk: defaultSweepChunk}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepReport summarizes one sweep pass.  AlreadyFree counts ledger
// rows whose unit had already been released by another path (TTL expiry
// or a concurrent sweep); those are not failures.
type SweepReport struct {
	Scanned     int
	Released    int
	AlreadyFree int
	Failed      int
}

// Sweep releases every expired hold in bounded chunks.  Each ledger row
// is processed in its own transaction so a single failing row is
// logged, counted and skipped without aborting the pass; re-running
// only affects rows still matching the expiry predicate.  In dry-run
// mode it reports the number of expired rows without mutating anything.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (SweepReport, error) {
	now := s.clk.Now()
	var report SweepReport

	if dryRun {
		n, err := s.ledger.CountExpired(ctx, now)
		if err != nil {
			return report, err
		}
		report.Scanned = n
		return report, nil
	}

	for {
		holds, err := s.ledger.ListExpired(ctx, now, s.chunk)
		if err != nil {
			return report, err
		}
		if len(holds) == 0 {
			break
		}
		report.Scanned += len(holds)

		progress := 0
		for _, h := range holds {
			h := h
			var released bool
			err := s.units.WithTx(ctx, func(txCtx context.Context) error {
				var err error
				released, err = s.units.ReleaseIfHeld(txCtx, h.LayoutID, h.UnitUID)
				if err != nil {
					return err
				}
				return s.ledger.DeleteExpired(txCtx, h, now)
			})
			if err != nil {
				log.Printf("sweeper: release failed for layout=%d unit=%s holder=%s: %v",
					h.LayoutID, h.UnitUID, h.HolderRef, err)
				report.Failed++
				continue
			}
			if released {
				report.Released++
			} else {
				report.AlreadyFree++
			}
			progress++
		}
		// Failed rows stay in the ledger; without progress the next scan
		// would return the same chunk forever.
		if progress == 0 {
			break
		}
		if len(holds) < s.chunk {
			break
		}
	}
	return report, nil
}
