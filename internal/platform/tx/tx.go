// Package tx carries a database transaction through context so stores can
// join an ambient transaction without changing their signatures.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// With returns a context carrying the transaction.
func With(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From extracts the ambient transaction, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Runner executes a unit of work atomically.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopRunner executes the unit directly. In-memory stores guard their own
// state, so no surrounding transaction is needed.
type NoopRunner struct{}

func (NoopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SQLRunner runs functions inside a database transaction. Stores that honor
// the context transaction participate atomically.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner creates a transaction runner over the given database.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunInTx begins a transaction, injects it into the context, and commits if
// fn returns nil. Any error rolls the whole unit back.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if existing, ok := From(ctx); ok && existing != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(With(ctx, dbtx)); err != nil {
		if rbErr := dbtx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
