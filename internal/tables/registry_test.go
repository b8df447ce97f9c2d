package tables

import (
	"context"
	"sync"
	"testing"
	"time"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"
	"cafe-order-service/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memstore.Store
	registry *Registry
	events   *queue.Recorder
	table    domain.Table
	product  domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	events := &queue.Recorder{}
	f := &fixture{
		store:    s,
		registry: NewRegistry(s, events, zap.NewNop()),
		events:   events,
		table:    s.AddTable(store.NewTable{Name: "T1", Location: "Indoor", Capacity: 4}),
		product:  s.AddProduct(domain.Product{Name: "Latte", Price: decimal.RequireFromString("4.50"), IsActive: true}),
	}
	return f
}

func (f *fixture) addItem(t *testing.T, orderID int64, qty int) {
	t.Helper()
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.InsertLineItem(ctx, domain.LineItem{OrderID: orderID, ProductID: f.product.ID, Quantity: qty, Price: f.product.Price})
		if err != nil {
			return err
		}
		order, err := tx.GetOrder(ctx, orderID, true)
		if err != nil {
			return err
		}
		_, err = store.Recompute(ctx, tx, order)
		return err
	}))
}

func (f *fixture) markPaidBehindRegistry(t *testing.T, orderID int64) {
	t.Helper()
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID, true)
		if err != nil {
			return err
		}
		_, err = store.SettleOrder(ctx, tx, order, time.Now())
		return err
	}))
}

func TestStartOrderOpensEmptyTable(t *testing.T) {
	f := newFixture(t)

	agg, err := f.registry.StartOrder(context.Background(), f.table.ID)
	require.NoError(t, err)
	require.NotNil(t, agg.Order)
	assert.Equal(t, domain.TableOccupied, agg.Table.Status)
	require.NotNil(t, agg.Table.CurrentOrderID)
	assert.Equal(t, agg.Order.ID, *agg.Table.CurrentOrderID)
	assert.Nil(t, agg.Table.OccupiedBy)
	assert.False(t, agg.Order.IsPaid)
	assert.True(t, agg.Order.TotalAmount.IsZero())
	assert.Equal(t, []string{queue.TableOpened}, f.events.Types())
}

func TestStartOrderRejectsNonEmptyTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)

	_, err = f.registry.StartOrder(ctx, f.table.ID)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrConflict, de.Code)
	assert.Equal(t, domain.TableOccupied, de.Details["status"])
	assert.Equal(t, &first.Order.ID, de.Details["currentOrderId"])

	reserved := f.store.AddTable(store.NewTable{Name: "T2", Location: "Indoor"})
	_, err = f.registry.Reserve(ctx, reserved.ID)
	require.NoError(t, err)
	_, err = f.registry.StartOrder(ctx, reserved.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	_, err = f.registry.StartOrder(ctx, 999)
	assert.True(t, domain.HasCode(err, domain.ErrNotFound))
}

func TestStartOrderConcurrentCallsOpenOneOrder(t *testing.T) {
	f := newFixture(t)
	const callers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.registry.StartOrder(context.Background(), f.table.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case domain.HasCode(err, domain.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)

	orders := activeOrders(t, f.store)
	assert.Len(t, orders, 1)
}

func activeOrders(t *testing.T, s store.Store) []domain.OrderSummary {
	t.Helper()
	var out []domain.OrderSummary
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, store.OrderFilter{Paid: false})
		return err
	}))
	return out
}

func TestCloseOrderSettlesAndFreesTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)
	f.addItem(t, agg.Order.ID, 2)

	res, err := f.registry.CloseOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Repaired)
	require.NotNil(t, res.ClosedOrderID)
	assert.Equal(t, agg.Order.ID, *res.ClosedOrderID)
	require.NotNil(t, res.Order)
	assert.True(t, res.Order.IsPaid)
	assert.NotNil(t, res.Order.CloseTime)
	assert.True(t, res.Order.TotalAmount.Equal(decimal.RequireFromString("9.00")))

	assert.Equal(t, domain.TableEmpty, res.Table.Status)
	assert.Nil(t, res.Table.CurrentOrderID)
	assert.Nil(t, res.Table.OccupiedBy)
	assert.Empty(t, activeOrders(t, f.store))
	assert.Equal(t, []string{queue.TableOpened, queue.OrderPaid, queue.TableClosed}, f.events.Types())
}

func TestCloseOrderOnEmptyTableIsNoop(t *testing.T) {
	f := newFixture(t)

	res, err := f.registry.CloseOrder(context.Background(), f.table.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, res.ClosedOrderID)
	assert.Equal(t, domain.TableEmpty, res.Table.Status)
	assert.Empty(t, f.events.Events())
}

func TestCloseOrderClearsReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.registry.Reserve(ctx, f.table.ID)
	require.NoError(t, err)

	res, err := f.registry.CloseOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Nil(t, res.ClosedOrderID)
	assert.Equal(t, domain.TableEmpty, res.Table.Status)
	assert.Equal(t, []string{queue.TableReserved, queue.TableReservationCanceled}, f.events.Types())
}

func TestCloseOrderRepairsTableWithPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)
	f.markPaidBehindRegistry(t, agg.Order.ID)

	res, err := f.registry.CloseOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Repaired)
	assert.Nil(t, res.ClosedOrderID)
	assert.Equal(t, domain.TableEmpty, res.Table.Status)
	assert.Nil(t, res.Table.CurrentOrderID)
}

func TestReserveRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	table, err := f.registry.Reserve(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableReserved, table.Status)

	table, err = f.registry.Reserve(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableReserved, table.Status)
	assert.Equal(t, []string{queue.TableReserved}, f.events.Types())

	table, err = f.registry.CancelReservation(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableEmpty, table.Status)

	_, err = f.registry.CancelReservation(ctx, f.table.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	_, err = f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = f.registry.Reserve(ctx, f.table.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))
}

func TestHelpRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.AddTable(store.NewTable{Name: "T2", Location: "Garden"})

	_, err := f.registry.RequestHelp(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = f.registry.RequestHelp(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = f.registry.Reserve(ctx, other.ID)
	require.NoError(t, err)
	_, err = f.registry.RequestHelp(ctx, other.ID)
	require.NoError(t, err)

	requests, err := f.registry.ListHelpRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.HelpRequest{
		{TableID: f.table.ID, TableName: "T1"},
		{TableID: other.ID, TableName: "T2"},
	}, requests)

	table, err := f.registry.ResolveHelp(ctx, f.table.ID)
	require.NoError(t, err)
	assert.False(t, table.HelpRequested)

	requests, err = f.registry.ListHelpRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	assert.Equal(t, []string{
		queue.TableHelpRequested,
		queue.TableReserved,
		queue.TableHelpRequested,
		queue.TableHelpResolved,
	}, f.events.Types())

	_, err = f.registry.RequestHelp(ctx, 999)
	assert.True(t, domain.HasCode(err, domain.ErrNotFound))
}

func TestStatusIncludesOpenOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)
	f.addItem(t, agg.Order.ID, 3)

	view, err := f.registry.Status(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableOccupied, view.Status)
	require.Len(t, view.LineItems, 1)
	assert.Equal(t, "Latte", view.LineItems[0].ProductName)
	assert.True(t, view.TotalAmount.Equal(decimal.RequireFromString("13.50")))
}

func TestStatusRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agg, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)
	f.markPaidBehindRegistry(t, agg.Order.ID)

	view, err := f.registry.Status(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableEmpty, view.Status)
	assert.Nil(t, view.CurrentOrderID)
	assert.Empty(t, view.LineItems)

	dangling := int64(4242)
	broken := f.table
	broken.Status = domain.TableOccupied
	broken.CurrentOrderID = &dangling
	f.store.Corrupt(broken)

	view, err = f.registry.Status(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableEmpty, view.Status)

	_, err = f.registry.StartOrder(ctx, f.table.ID)
	assert.NoError(t, err)
}

func TestFloorPlanGroupsByLocation(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(store.NewTable{Name: "G2", Location: "Garden"})
	f.store.AddTable(store.NewTable{Name: "G1", Location: "Garden"})
	f.store.AddTable(store.NewTable{Name: "A1", Location: "Indoor"})

	sections, err := f.registry.FloorPlan(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Garden", sections[0].Location)
	assert.Equal(t, "G1", sections[0].Tables[0].Name)
	assert.Equal(t, "G2", sections[0].Tables[1].Name)
	assert.Equal(t, "Indoor", sections[1].Location)
	assert.Equal(t, "A1", sections[1].Tables[0].Name)
	assert.Equal(t, "T1", sections[1].Tables[1].Name)
}

func TestCreateTableValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   store.NewTable
		code domain.ErrorCode
	}{
		{"blank name", store.NewTable{Name: "  "}, domain.ErrValidation},
		{"negative capacity", store.NewTable{Name: "T9", Capacity: -1}, domain.ErrValidation},
		{"duplicate name", store.NewTable{Name: "t1"}, domain.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.registry.CreateTable(ctx, tc.in)
			assert.True(t, domain.HasCode(err, tc.code), "got %v", err)
		})
	}

	table, err := f.registry.CreateTable(ctx, store.NewTable{Name: " Patio 1 ", Location: "Patio", Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Patio 1", table.Name)
	assert.Equal(t, domain.TableEmpty, table.Status)
}

func TestDeleteTableGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	spare := f.store.AddTable(store.NewTable{Name: "Spare"})
	require.NoError(t, f.registry.DeleteTable(ctx, spare.ID))
	assert.True(t, domain.HasCode(f.registry.DeleteTable(ctx, spare.ID), domain.ErrNotFound))

	_, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)
	assert.True(t, domain.HasCode(f.registry.DeleteTable(ctx, f.table.ID), domain.ErrConflict))

	_, err = f.registry.CloseOrder(ctx, f.table.ID)
	require.NoError(t, err)
	err = f.registry.DeleteTable(ctx, f.table.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict), "tables with order history are kept")
}
