package db

import (
	"context"
	"database/sql"
)

// Tx is a store transaction. It exposes the same operations as DB.
type Tx struct {
	queries
	tx *sql.Tx
}

// WithTx executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn panics, the transaction is rolled back and the panic is re-raised.
// If fn succeeds, the transaction is committed.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	tx := &Tx{queries: queries{q: sqlTx, dialect: db.dialect}, tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}
