// Package dbx lets the slices repository write a whole persistence flush in
// one SQLite transaction, so a crash mid-flush never leaves the entries slice
// from one flush next to the sync queue from another.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is what the slice upserts need; *sql.DB and *sql.Tx both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs batch inside a transaction on db. The batch is committed only
// when it returns nil; an error or a panic rolls every write back. The batch
// error is returned as is, begin and commit failures are wrapped.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, batch func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := batch(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	committed = true
	return nil
}
