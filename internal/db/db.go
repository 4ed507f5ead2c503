// Package db provides the PostgreSQL repositories for customers, plans,
// subscriptions and gateway webhook deliveries. Repositories accept a DBTX
// so the same code runs against *pgxpool.Pool or inside a pgx.Tx.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"aigrowth/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is satisfied by *pgxpool.Pool and by pgxmock pools.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups the repositories bound to a single connection or
// transaction.
type Repositories struct {
	Customers     *CustomerRepository
	Plans         *PlanRepository
	Subscriptions *SubscriptionRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Customers:     NewCustomerRepository(db),
		Plans:         NewPlanRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
	}
}

// TxRunner executes units of work in a single transaction.
type TxRunner struct {
	pool TxBeginner
}

// NewTxRunner returns a TxRunner that begins transactions on pool.
func NewTxRunner(pool TxBeginner) *TxRunner {
	return &TxRunner{pool: pool}
}

// InTx runs fn with repositories bound to a fresh transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *TxRunner) InTx(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// isUniqueViolation reports a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
