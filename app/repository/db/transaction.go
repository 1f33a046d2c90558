package db

import (
	"context"
	"database/sql"
	"inventory-service/app/domain"
	"log/slog"
	"time"
)

type txKey struct{}

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// from returns the transaction carried by ctx, or the pool when there is none.
func from(ctx context.Context, conn *sql.DB) executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return conn
}

type transactor struct {
	conn *sql.DB
}

func NewTransactor(db *sql.DB) domain.Transactor {
	return &transactor{db}
}

// WithTransaction runs fn in a transaction stored in the context handed to fn.
// A context that already carries a transaction joins it.
func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "[transactor] WithTransaction", "beginTx", err)
		return domain.PersistenceErr("begin transaction", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			slog.ErrorContext(ctx, "[transactor] WithTransaction", "rollback", rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.ErrorContext(ctx, "[transactor] WithTransaction", "commit", err)
		return domain.PersistenceErr("commit transaction", err)
	}

	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
