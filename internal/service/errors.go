// Package service implements the inventory reservation core: placing,
// confirming and releasing holds, the fallback sweeper and the order
// expiration cascade.  All correctness rests on the versioned
// compare-and-swap of the unit store plus per-order transactional
// atomicity; the service never takes an in-process lock.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHoldConflict signals that a requested unit was not available or
// lost the compare-and-swap race.  The checkout flow surfaces it as
// "seat unavailable" and the caller re-queries inventory.
var ErrHoldConflict = errors.New("hold conflict")

// ErrStaleHold signals a version mismatch at confirm time: the hold
// expired or was released underneath the caller, who must restart
// checkout.
var ErrStaleHold = errors.New("stale hold")

// ErrQuotaExceeded signals that confirming the sale would push a ticket
// type's sold counter above its quota.  Fatal for the confirmation.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrEmptyHoldSet is returned when an operation receives no units.
var ErrEmptyHoldSet = errors.New("no units in hold set")

// HoldConflictError carries the unit UIDs that blocked a PlaceHold
// batch so the checkout flow can tell the buyer which seats are gone.
// errors.Is(err, ErrHoldConflict) matches it.
type HoldConflictError struct {
	Unavailable []string
}

func (e *HoldConflictError) Error() string {
	return fmt.Sprintf("hold conflict: units unavailable: %s", strings.Join(e.Unavailable, ", "))
}

func (e *HoldConflictError) Is(target error) bool { return target == ErrHoldConflict }

// StaleHoldError names the first unit whose version no longer matched
// at confirm time.  errors.Is(err, ErrStaleHold) matches it.
type StaleHoldError struct {
	UnitUID string
}

func (e *StaleHoldError) Error() string {
	return fmt.Sprintf("stale hold: unit %s changed underneath caller", e.UnitUID)
}

func (e *StaleHoldError) Is(target error) bool { return target == ErrStaleHold }
