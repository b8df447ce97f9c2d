package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TableStatus
		want     bool
	}{
		{TableEmpty, TableOccupied, true},
		{TableEmpty, TableReserved, true},
		{TableOccupied, TableEmpty, true},
		{TableReserved, TableEmpty, true},
		{TableOccupied, TableReserved, false},
		{TableReserved, TableOccupied, false},
		{TableEmpty, TableEmpty, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTableOpen(t *testing.T) {
	table := Table{ID: 5, Name: "T5", Status: TableEmpty}
	session := "s-1"

	require.NoError(t, table.Open(11, &session))
	assert.Equal(t, TableOccupied, table.Status)
	require.NotNil(t, table.CurrentOrderID)
	assert.Equal(t, int64(11), *table.CurrentOrderID)
	assert.True(t, table.IsOwnedBy("s-1"))
	assert.False(t, table.IsOwnedBy("s-2"))

	err := table.Open(12, nil)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrConflict))
	assert.Equal(t, int64(11), *table.CurrentOrderID)
}

func TestTableReserveRules(t *testing.T) {
	orderID := int64(3)
	occupied := Table{ID: 1, Name: "T1", Status: TableOccupied, CurrentOrderID: &orderID}
	err := occupied.Reserve()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrConflict))
	assert.Equal(t, TableOccupied, occupied.Status)

	reserved := Table{ID: 2, Name: "T2", Status: TableEmpty}
	require.NoError(t, reserved.Reserve())
	require.NoError(t, reserved.Reserve())
	assert.Equal(t, TableReserved, reserved.Status)
	assert.Nil(t, reserved.CurrentOrderID)

	err = reserved.Open(9, nil)
	assert.True(t, HasCode(err, ErrConflict))

	require.NoError(t, reserved.CancelReservation())
	assert.Equal(t, TableEmpty, reserved.Status)
	assert.True(t, HasCode(reserved.CancelReservation(), ErrConflict))
}

func TestTableConsistent(t *testing.T) {
	orderID := int64(7)
	table := Table{ID: 1, Status: TableOccupied, CurrentOrderID: &orderID}

	assert.True(t, table.Consistent(&Order{ID: 7, TableID: 1}))
	assert.False(t, table.Consistent(&Order{ID: 7, TableID: 1, IsPaid: true}))
	assert.False(t, table.Consistent(&Order{ID: 7, TableID: 2}))
	assert.False(t, table.Consistent(nil))

	table.Free()
	assert.True(t, table.Consistent(nil))
	assert.Nil(t, table.OccupiedBy)
}

func TestSumLineItems(t *testing.T) {
	items := []LineItem{
		{ProductID: 3, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{ProductID: 4, Quantity: 1, Price: decimal.RequireFromString("5.00")},
	}
	assert.True(t, decimal.RequireFromString("25.00").Equal(SumLineItems(items)))
	assert.True(t, decimal.Zero.Equal(SumLineItems(nil)))
}

func TestCheckLineQuantity(t *testing.T) {
	cases := []struct {
		name    string
		current int
		delta   int
		ok      bool
	}{
		{name: "new line at the cap", current: 0, delta: MaxLineQuantity, ok: true},
		{name: "increase to the cap", current: 990, delta: 9, ok: true},
		{name: "increase past the cap", current: 990, delta: 10},
		{name: "huge delta", current: 1, delta: math.MaxInt},
		{name: "huge negative delta", current: 1, delta: math.MinInt},
		{name: "decrease to removal", current: 3, delta: -3, ok: true},
		{name: "decrease below zero", current: 3, delta: -10, ok: true},
		{name: "decrease over the cap", current: 3, delta: -(MaxLineQuantity + 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckLineQuantity(tc.current, tc.delta)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, HasCode(err, ErrValidation))
		})
	}
}
