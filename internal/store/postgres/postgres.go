// Package postgres implements store.Store on pgx. Every transition runs in one
// transaction with the affected rows locked (select ... for update); the
// partial unique index on orders(table_id) where not is_paid is the last line
// against two open orders for one table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"cafe-order-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel receives a notification after every committed write to
// tables, orders or line items.
const NotifyChannel = "tables_updates"

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t := &pgTx{tx: tx}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if t.dirty {
		if _, err := tx.Exec(ctx, `select pg_notify($1, '')`, NotifyChannel); err != nil {
			return translate(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(err)
	}
	return nil
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
)

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		case pgCheckViolation, pgNumericOutOfRange:
			return fmt.Errorf("%w: %s", store.ErrInvalid, pgErr.Message)
		}
	}
	return err
}

func lockClause(lock bool) string {
	if lock {
		return " for update"
	}
	return ""
}
