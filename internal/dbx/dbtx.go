// Package dbx holds the small database layer shared by the repositories:
// the DBTX handle satisfied by both *sql.DB and *sql.Tx, scoped
// transactions, the supported SQL dialects and time column encoding.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the part of database/sql the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx opens a transaction on db, builds a handle on it with bind and
// passes the handle to fn. The transaction commits when fn returns nil and
// rolls back when it returns an error or panics; a panic is re-raised after
// the rollback.
//
//	err := dbx.WithTx(ctx, db, func(tx dbx.DBTX) *Repos { return NewRepos(tx) },
//	    func(ctx context.Context, r *Repos) error {
//	        return r.Users.Update(ctx, u)
//	    })
//
// A failed rollback is joined to fn's error.
func WithTx[T any](ctx context.Context, db *sql.DB, bind func(tx DBTX) T, fn func(ctx context.Context, h T) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit: %w", cErr)
		}
	}()

	return fn(ctx, bind(tx))
}
