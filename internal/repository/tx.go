package repository

import (
    "context"
    "database/sql"
)

// The service layer drives multi-step writes through WithTx/
// WithSerializableTx and the transaction travels in the context, so
// repository methods can be composed inside one transaction without
// threading *sql.Tx through every signature.

type txKey struct{}

// queryer is the subset of *sql.DB and *sql.Tx the repositories need.
type queryer interface {
    ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction with the given options. When the
// context already carries a transaction, fn joins it and commit/rollback
// stay with the outermost caller.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
    if txFromContext(ctx) != nil {
        return fn(ctx)
    }
    tx, err := db.BeginTx(ctx, opts)
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

// q returns the transaction carried by ctx, or db when none is active.
func q(ctx context.Context, db *sql.DB) queryer {
    if tx := txFromContext(ctx); tx != nil {
        return tx
    }
    return db
}
