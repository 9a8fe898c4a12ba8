package uow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxAttempts = 3

// Querier is the part of the pgx API shared by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTxKey struct{}

// Postgres runs units of work as pgx transactions and retries them on
// serialization failures and deadlocks.
type Postgres struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	maxAttempts int
}

// NewPostgres builds a Postgres unit of work manager.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger, maxAttempts: defaultMaxAttempts}
}

// Run executes fn in a transaction, committing when it returns nil.
func (u *Postgres) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		err = u.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		u.logger.Warn("retrying unit of work",
			slog.Int("attempt", attempt+1),
			slog.Any("err", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<attempt) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("unit of work failed after %d attempts: %w", u.maxAttempts, err)
}

func (u *Postgres) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			u.logger.Error("rollback failed", slog.Any("err", err))
		}
	}()

	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Conn returns the transaction carried by ctx, or the pool when no unit of
// work is active.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
