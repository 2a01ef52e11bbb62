package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/ticket-inventory/internal/model"
)

// UnitRepo provides data access to the inventory_units table.  Status
// transitions are conditional updates whose affected-row count carries
// the optimistic-locking verdict; no transition ever happens without
// either a version guard or a status guard.  All timestamps are UTC.
type UnitRepo struct {
	db *sql.DB
}

// NewUnitRepo returns a UnitRepo bound to the provided database.
func NewUnitRepo(db *sql.DB) *UnitRepo { return &UnitRepo{db: db} }

// WithTx runs fn inside a transaction on the repository's database.
// Other repositories sharing the same *sql.DB join the transaction
// through the context.
func (r *UnitRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.db, fn)
}

// LockUnits loads the requested units within the current transaction
// using SELECT ... FOR UPDATE, so that concurrent PlaceHold batches on
// overlapping units serialize at the database instead of both passing
// the availability check.  Units are returned in no particular order;
// a missing UID yields ErrUnitNotFound.
func (r *UnitRepo) LockUnits(ctx context.Context, layoutID uint64, unitUIDs []string) ([]model.InventoryUnit, error) {
	if len(unitUIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unitUIDs)), ",")
	query := `SELECT layout_id, unit_uid, status, version, last_change_at
	          FROM inventory_units
	          WHERE layout_id = ? AND unit_uid IN (` + placeholders + `) FOR UPDATE`
	args := make([]interface{}, 0, len(unitUIDs)+1)
	args = append(args, layoutID)
	for _, uid := range unitUIDs {
		args = append(args, uid)
	}
	rows, err := querierFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := make([]model.InventoryUnit, 0, len(unitUIDs))
	for rows.Next() {
		var u model.InventoryUnit
		if err := rows.Scan(&u.LayoutID, &u.UnitUID, &u.Status, &u.Version, &u.LastChangeAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(units) != len(unitUIDs) {
		return nil, ErrUnitNotFound
	}
	return units, nil
}

// Transition performs the compare-and-swap at the heart of the
// reservation core: the unit moves from→to only when both the status
// and the caller's observed version still match, and the version is
// bumped in the same statement.  Zero affected rows means another
// writer got there first and is reported as ErrVersionConflict.
func (r *UnitRepo) Transition(ctx context.Context, layoutID uint64, unitUID string, from, to model.UnitStatus, version uint64) error {
	const q = `UPDATE inventory_units
	           SET status = ?, version = version + 1, last_change_at = UTC_TIMESTAMP()
	           WHERE layout_id = ? AND unit_uid = ? AND status = ? AND version = ?`
	res, err := querierFor(ctx, r.db).ExecContext(ctx, q, to, layoutID, unitUID, from, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ReleaseIfHeld flips a unit back to available only when it is
// currently held, bumping the version.  It reports whether a row was
// actually released; releasing an already-available unit is a benign
// no-op, which makes the sweeper and the TTL expiry safe to race.
func (r *UnitRepo) ReleaseIfHeld(ctx context.Context, layoutID uint64, unitUID string) (bool, error) {
	const q = `UPDATE inventory_units
	           SET status = ?, version = version + 1, last_change_at = UTC_TIMESTAMP()
	           WHERE layout_id = ? AND unit_uid = ? AND status = ?`
	res, err := querierFor(ctx, r.db).ExecContext(ctx, q, model.UnitAvailable, layoutID, unitUID, model.UnitHeld)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateBulk inserts inventory units at layout import time.  Status
// defaults to available with version 0.  Passing an empty slice is a
// no-op.
func (r *UnitRepo) CreateBulk(ctx context.Context, layoutID uint64, unitUIDs []string) error {
	if len(unitUIDs) == 0 {
		return nil
	}
	query := `INSERT INTO inventory_units (layout_id, unit_uid, status, version) VALUES `
	args := make([]interface{}, 0, len(unitUIDs)*4)
	for i, uid := range unitUIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, 0)"
		args = append(args, layoutID, uid, model.UnitAvailable)
	}
	_, err := querierFor(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

// ListByLayout returns every unit of a layout ordered by UID.  Used by
// the read-only admin surface; never called from a mutating path.
func (r *UnitRepo) ListByLayout(ctx context.Context, layoutID uint64) ([]model.InventoryUnit, error) {
	const q = `SELECT layout_id, unit_uid, status, version, last_change_at
	           FROM inventory_units WHERE layout_id = ? ORDER BY unit_uid`
	rows, err := r.db.QueryContext(ctx, q, layoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []model.InventoryUnit
	for rows.Next() {
		var u model.InventoryUnit
		if err := rows.Scan(&u.LayoutID, &u.UnitUID, &u.Status, &u.Version, &u.LastChangeAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
