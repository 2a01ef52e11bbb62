package model

import "time"

// UnitStatus enumerates the lifecycle states of a sellable inventory
// unit. Every sale passes through "held"; there is no direct
// available→sold transition.
type UnitStatus string

const (
	UnitAvailable UnitStatus = "available" // on sale, may be held
	UnitHeld      UnitStatus = "held"      // reserved by a checkout in progress
	UnitSold      UnitStatus = "sold"      // sale confirmed, terminal
)

// InventoryUnit is one physical seat within a seating layout.  The
// composite key is (LayoutID, UnitUID).  Version increases strictly on
// every status change and carries the optimistic-locking contract: a
// writer may only transition the unit if the version it observed still
// matches the stored one.
//
// Fields:
//  LayoutID     – seating layout the unit belongs to.
//  UnitUID      – stable seat identifier within the layout (e.g. "A1").
//  Status       – current lifecycle state.
//  Version      – optimistic concurrency counter.
//  LastChangeAt – timestamp of the last successful transition.
type InventoryUnit struct {
	LayoutID     uint64     // inventory_units.layout_id
	UnitUID      string     // inventory_units.unit_uid
	Status       UnitStatus // inventory_units.status
	Version      uint64     // inventory_units.version
	LastChangeAt time.Time  // inventory_units.last_change_at
}
