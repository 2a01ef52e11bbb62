package model

import "time"

// Hold is one row of the hold ledger: a durable record that a unit is
// reserved by a holder until ExpiresAt.  The ledger is the source of
// truth for fallback sweeping; the Redis TTL keys are only a low-latency
// mirror of it.  At most one live Hold should exist per unit at a time,
// which the hold service enforces through the unit status transition
// rather than a foreign key.
type Hold struct {
	LayoutID  uint64    // holds.layout_id
	UnitUID   string    // holds.unit_uid
	HolderRef string    // holds.holder_ref (order or session reference)
	ExpiresAt time.Time // holds.expires_at
	CreatedAt time.Time // holds.created_at
}

// HeldUnit pairs a unit with the version the holder observed when the
// hold was placed.  Confirmation replays this version as the CAS guard.
type HeldUnit struct {
	UnitUID string
	Version uint64
}

// HoldSet is the result of a successful PlaceHold call and the input to
// ConfirmSale/ReleaseHold.  It identifies every unit the holder owns
// together with the versions to compare-and-swap against.
type HoldSet struct {
	LayoutID  uint64
	HolderRef string
	ExpiresAt time.Time
	Units     []HeldUnit
}

// UnitUIDs returns the unit identifiers of the set in order.
func (s HoldSet) UnitUIDs() []string {
	uids := make([]string, 0, len(s.Units))
	for _, u := range s.Units {
		uids = append(uids, u.UnitUID)
	}
	return uids
}
