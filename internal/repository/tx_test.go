package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithTxJoinsExistingTransaction(t *testing.T) {
	tx := &sql.Tx{}
	ctx := context.WithValue(context.Background(), txKey{}, tx)

	called := false
	err := WithTx(ctx, nil, func(inner context.Context) error {
		called = true
		// the nested call must see the same transaction, not a new one
		require.Same(t, tx, txFromContext(inner))
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestWithTxJoinPropagatesError(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey{}, &sql.Tx{})
	boom := errors.New("boom")
	err := WithTx(ctx, nil, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestQuerierForPrefersTransaction(t *testing.T) {
	db := &sql.DB{}
	require.Equal(t, querier(db), querierFor(context.Background(), db))

	tx := &sql.Tx{}
	ctx := context.WithValue(context.Background(), txKey{}, tx)
	require.Equal(t, querier(tx), querierFor(ctx, db))
}
