package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	table := s.AddTable(store.NewTable{Name: "T1", Location: "Indoor", Capacity: 2})
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetTable(ctx, table.ID, true)
		require.NoError(t, err)
		got.HelpRequested = true
		require.NoError(t, tx.UpdateTable(ctx, got))
		_, err = tx.InsertOrder(ctx, domain.Order{TableID: table.ID, OpenTime: time.Now()})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_ = s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetTable(ctx, table.ID, false)
		require.NoError(t, err)
		assert.False(t, got.HelpRequested)
		orders, err := tx.ListOrders(ctx, store.OrderFilter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
		return nil
	})
}

func TestInsertOrderRejectsSecondOpenOrder(t *testing.T) {
	s := New()
	table := s.AddTable(store.NewTable{Name: "T1"})

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.InsertOrder(ctx, domain.Order{TableID: table.ID}); err != nil {
			return err
		}
		_, err := tx.InsertOrder(ctx, domain.Order{TableID: table.ID})
		return err
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestInsertTableRejectsDuplicateName(t *testing.T) {
	s := New()
	s.AddTable(store.NewTable{Name: "T1"})

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.InsertTable(ctx, store.NewTable{Name: "t1"})
		return err
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUpdateTableRejectsSecondTableForSession(t *testing.T) {
	s := New()
	first := s.AddTable(store.NewTable{Name: "T1"})
	second := s.AddTable(store.NewTable{Name: "T2"})
	owner := "sess-a"

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, table := range []domain.Table{first, second} {
			order, err := tx.InsertOrder(ctx, domain.Order{TableID: table.ID, OpenTime: time.Now()})
			if err != nil {
				return err
			}
			if err := table.Open(order.ID, &owner); err != nil {
				return err
			}
			if err := tx.UpdateTable(ctx, table); err != nil {
				return err
			}
		}
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		got, ok, err := tx.FindTableByOccupant(ctx, owner)
		require.NoError(t, err)
		assert.False(t, ok, "rolled back: %+v", got)
		return nil
	})
	require.NoError(t, err)
}
