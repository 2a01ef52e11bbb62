package repository

import (
	"context"
	"database/sql"
)

// txKey carries the active transaction through the context so that
// repository methods invoked inside WithTx automatically join it.
type txKey struct{}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repository methods run against it and therefore work both inside and
// outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// WithTx runs fn inside a database transaction.  The transaction is
// committed when fn returns nil and rolled back otherwise.  Nested
// calls join the transaction already present in the context instead of
// opening a second one.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// querierFor returns the context's transaction when present, otherwise
// the bare database handle.
func querierFor(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}
