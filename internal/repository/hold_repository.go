package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/ticket-inventory/internal/model"
)

// HoldRepo provides data access to the holds table, the durable ledger
// of outstanding reservations.  The ledger is what the fallback sweeper
// scans; the Redis TTL keys only mirror it.  All expiry comparisons are
// performed against UTC timestamps supplied by the caller's clock so
// tests can pin time.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// CreateBatch inserts one ledger row per held unit in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *HoldRepo) CreateBatch(ctx context.Context, holds []model.Hold) error {
	if len(holds) == 0 {
		return nil
	}
	query := `INSERT INTO holds (layout_id, unit_uid, holder_ref, expires_at) VALUES `
	args := make([]interface{}, 0, len(holds)*4)
	for i, h := range holds {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, h.LayoutID, h.UnitUID, h.HolderRef, h.ExpiresAt.UTC())
	}
	_, err := querierFor(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

// ListUnits returns the ledger rows currently covering the given units,
// whatever their holder.  Release uses it inside the transaction to
// establish which of the requested units the caller actually owns.
func (r *HoldRepo) ListUnits(ctx context.Context, layoutID uint64, unitUIDs []string) ([]model.Hold, error) {
	if len(unitUIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unitUIDs)), ",")
	query := `SELECT layout_id, unit_uid, holder_ref, expires_at, created_at
	          FROM holds WHERE layout_id = ? AND unit_uid IN (` + placeholders + `)`
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
	var holds []model.Hold
	for rows.Next() {
		var h model.Hold
		if err := rows.Scan(&h.LayoutID, &h.UnitUID, &h.HolderRef, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// DeleteUnits removes the ledger rows for the given units regardless of
// holder.  Confirm (which has already proven ownership through the
// version CAS) and the release paths go through here after scoping the
// unit list; deleting a row that is already gone is a no-op.
func (r *HoldRepo) DeleteUnits(ctx context.Context, layoutID uint64, unitUIDs []string) error {
	if len(unitUIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unitUIDs)), ",")
	query := `DELETE FROM holds WHERE layout_id = ? AND unit_uid IN (` + placeholders + `)`
	args := make([]interface{}, 0, len(unitUIDs)+1)
	args = append(args, layoutID)
	for _, uid := range unitUIDs {
		args = append(args, uid)
	}
	_, err := querierFor(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

// ListExpired returns up to limit ledger rows whose expiry lies before
// cutoff, oldest first.  The limit keeps each sweeper pass bounded so
// it can run at any interval without starving other writers.
func (r *HoldRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Hold, error) {
	const q = `SELECT layout_id, unit_uid, holder_ref, expires_at, created_at
	           FROM holds WHERE expires_at < ? ORDER BY expires_at LIMIT ?`
	rows, err := querierFor(ctx, r.db).QueryContext(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.Hold
	for rows.Next() {
		var h model.Hold
		if err := rows.Scan(&h.LayoutID, &h.UnitUID, &h.HolderRef, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// CountExpired reports how many ledger rows are past cutoff.  Used by
// the sweeper's dry-run mode.
func (r *HoldRepo) CountExpired(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM holds WHERE expires_at < ?`
	var n int
	if err := querierFor(ctx, r.db).QueryRowContext(ctx, q, cutoff.UTC()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteExpired removes one ledger row only while it still matches the
// expiry predicate.  Re-running the sweeper after a partial failure
// therefore only touches rows that are still expired.
func (r *HoldRepo) DeleteExpired(ctx context.Context, h model.Hold, cutoff time.Time) error {
	const q = `DELETE FROM holds
	           WHERE layout_id = ? AND unit_uid = ? AND holder_ref = ? AND expires_at < ?`
	_, err := querierFor(ctx, r.db).ExecContext(ctx, q, h.LayoutID, h.UnitUID, h.HolderRef, cutoff.UTC())
	return err
}

// ListByHolder returns the ledger rows belonging to one holder, for
// diagnostics and the read-only admin surface.
func (r *HoldRepo) ListByHolder(ctx context.Context, holderRef string) ([]model.Hold, error) {
	const q = `SELECT layout_id, unit_uid, holder_ref, expires_at, created_at
	           FROM holds WHERE holder_ref = ? ORDER BY layout_id, unit_uid`
	rows, err := r.db.QueryContext(ctx, q, holderRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.Hold
	for rows.Next() {
		var h model.Hold
		if err := rows.Scan(&h.LayoutID, &h.UnitUID, &h.HolderRef, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}
