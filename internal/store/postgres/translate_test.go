package postgres

import (
	"errors"
	"fmt"
	"testing"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: store.ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: pgUniqueViolation}, want: store.ErrConflict},
		{name: "serialization failure", err: &pgconn.PgError{Code: pgSerializationFailure}, want: store.ErrConflict},
		{name: "deadlock", err: &pgconn.PgError{Code: pgDeadlockDetected}, want: store.ErrConflict},
		{name: "lock not available", err: &pgconn.PgError{Code: pgLockNotAvailable}, want: store.ErrConflict},
		{name: "foreign key", err: &pgconn.PgError{Code: pgForeignKeyViolation}, want: store.ErrConflict},
		{name: "check violation", err: &pgconn.PgError{Code: pgCheckViolation}, want: store.ErrInvalid},
		{name: "numeric out of range", err: &pgconn.PgError{Code: pgNumericOutOfRange}, want: store.ErrInvalid},
		{name: "syntax error passes through", err: &pgconn.PgError{Code: "42601"}},
		{name: "other error passes through", err: other, want: other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.err)
			if tc.want == nil {
				assert.Same(t, tc.err, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
	assert.NoError(t, translate(nil))
}

func TestTranslatedErrorsBecomeDomainErrors(t *testing.T) {
	err := store.DomainError(translate(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key"}), "table", 4)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	err = store.DomainError(translate(&pgconn.PgError{Code: pgNumericOutOfRange}), "line item", 9)
	assert.True(t, domain.HasCode(err, domain.ErrValidation))

	err = store.DomainError(translate(pgx.ErrNoRows), "order", 1)
	assert.True(t, domain.HasCode(err, domain.ErrNotFound))
}
