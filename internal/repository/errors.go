// Package repository provides MySQL persistence for the inventory
// reservation core: versioned inventory units, the hold ledger, quota
// counters, orders and provisional tickets.  Sentinel errors defined
// here let the service layer distinguish failure modes without parsing
// driver errors.
package repository

import "errors"

// ErrVersionConflict is returned when a conditional status update
// matches zero rows: the unit is no longer in the expected status, or
// its version moved underneath the caller.  The service maps this to a
// hold conflict at placement time and to a stale hold at confirm time.
var ErrVersionConflict = errors.New("version conflict")

// ErrUnitNotFound is returned when a referenced (layout_id, unit_uid)
// pair does not exist.
var ErrUnitNotFound = errors.New("inventory unit not found")

// ErrQuotaExceeded is returned when incrementing quota_sold would push
// it above quota_total.  It is never silently clamped.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrOrderNotFound is returned when an order lookup matches no row.
var ErrOrderNotFound = errors.New("order not found")
