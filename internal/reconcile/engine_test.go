package reconcile

import (
	"context"
	"math"
	"testing"
	"time"

	"cafe-order-service/internal/cart"
	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/ledger"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"
	"cafe-order-service/internal/store/memstore"
	"cafe-order-service/internal/tables"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memstore.Store
	sessions *cart.MemorySessionStore
	engine   *Engine
	registry *tables.Registry
	ledger   *ledger.Ledger
	events   *queue.Recorder
	table    domain.Table
	coffee   domain.Product
	cookie   domain.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	events := &queue.Recorder{}
	sessions := cart.NewMemorySessionStore(30 * time.Minute)
	return &fixture{
		store:    s,
		sessions: sessions,
		engine:   New(s, sessions, events, zap.NewNop()),
		registry: tables.NewRegistry(s, events, zap.NewNop()),
		ledger:   ledger.New(s, events, zap.NewNop()),
		events:   events,
		table:    s.AddTable(store.NewTable{Name: "T5", Location: "Indoor", Capacity: 2}),
		coffee:   s.AddProduct(domain.Product{Name: "Coffee", Price: money("10.00"), IsActive: true}),
		cookie:   s.AddProduct(domain.Product{Name: "Cookie", Price: money("5.00"), IsActive: true}),
	}
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestBindClaimsEmptyTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	require.True(t, b.Bound())
	assert.Equal(t, domain.TableOccupied, b.Table.Status)
	require.NotNil(t, b.Order)
	assert.Equal(t, f.table.ID, b.Order.TableID)
	assert.Contains(t, f.events.Types(), queue.TableOpened)

	again, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Order.ID, again.Order.ID)

	_, err = f.engine.Bind(ctx, "sess-b", f.table.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	sess, err := f.sessions.Load(ctx, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, sess.TableID)
	assert.Equal(t, f.table.ID, *sess.TableID)
}

func TestBindRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.AddTable(store.NewTable{Name: "T6", Location: "Indoor"})
	reserved := f.store.AddTable(store.NewTable{Name: "T7", Location: "Garden"})
	_, err := f.registry.Reserve(ctx, reserved.ID)
	require.NoError(t, err)

	_, err = f.engine.Bind(ctx, "sess-a", reserved.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	_, err = f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	_, err = f.engine.Bind(ctx, "sess-a", other.ID)
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	_, err = f.engine.Bind(ctx, "sess-a", 999)
	assert.True(t, domain.HasCode(err, domain.ErrNotFound))
}

func TestBindClaimsStaffOpenedTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	started, err := f.registry.StartOrder(ctx, f.table.ID)
	require.NoError(t, err)

	b, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, started.Order.ID, b.Order.ID)
	assert.True(t, b.Table.IsOwnedBy("sess-a"))
}

func TestCommitFlowThroughPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 2)
	require.NoError(t, err)
	preview, err := f.engine.AdjustDraft(ctx, "sess-a", f.cookie.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "T5", preview.TableName)
	assert.True(t, preview.DraftTotal.Equal(money("25.00")))
	assert.True(t, preview.SentTotal.IsZero())

	order, err := f.engine.Commit(ctx, "sess-a")
	require.NoError(t, err)
	assert.Len(t, order.LineItems, 2)
	assert.True(t, order.TotalAmount.Equal(money("25.00")))

	preview, err = f.engine.Preview(ctx, "sess-a")
	require.NoError(t, err)
	assert.True(t, preview.DraftTotal.IsZero())
	assert.True(t, preview.SentTotal.Equal(money("25.00")))
	assert.Len(t, preview.Lines, 2)

	res, err := f.ledger.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, res.TableReleased)

	view, err := f.registry.Status(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableEmpty, view.Status)
	assert.Nil(t, view.CurrentOrderID)

	b, err := f.engine.Resolve(ctx, "sess-a")
	require.NoError(t, err)
	assert.True(t, b.Stale)
	assert.False(t, b.Bound())
	assert.Equal(t, f.table.ID, *b.EvictedTableID)

	b, err = f.engine.Resolve(ctx, "sess-a")
	require.NoError(t, err)
	assert.False(t, b.Stale)
	assert.False(t, b.Bound())
}

func TestCommitMergesIntoExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)

	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 1)
	require.NoError(t, err)
	_, err = f.engine.Commit(ctx, "sess-a")
	require.NoError(t, err)

	f.store.SetProductPrice(f.coffee.ID, "12.00")
	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 2)
	require.NoError(t, err)
	order, err := f.engine.Commit(ctx, "sess-a")
	require.NoError(t, err)

	require.Len(t, order.LineItems, 1)
	assert.Equal(t, 3, order.LineItems[0].Quantity)
	assert.True(t, order.LineItems[0].Price.Equal(money("10.00")))
	assert.True(t, order.TotalAmount.Equal(money("30.00")))
}

func TestCommitErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Commit(ctx, "sess-a")
	assert.True(t, domain.HasCode(err, domain.ErrEmptyCart))

	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 1)
	require.NoError(t, err)
	_, err = f.engine.Commit(ctx, "sess-a")
	assert.True(t, domain.HasCode(err, domain.ErrNoActiveTable))

	_, err = f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	preview, err := f.engine.Preview(ctx, "sess-a")
	require.NoError(t, err)
	assert.True(t, preview.DraftTotal.Equal(money("10.00")), "draft built while unbound is kept on first bind")

	_, err = f.registry.CloseOrder(ctx, f.table.ID)
	require.NoError(t, err)
	_, err = f.engine.Commit(ctx, "sess-a")
	assert.True(t, domain.HasCode(err, domain.ErrNoActiveTable))

	sess, err := f.sessions.Load(ctx, "sess-a")
	require.NoError(t, err)
	assert.Nil(t, sess.TableID)
	assert.True(t, sess.Draft.IsEmpty())
}

func TestStaleSessionRejectedOnDraftAndPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	_, err = f.registry.CloseOrder(ctx, f.table.ID)
	require.NoError(t, err)

	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 1)
	assert.True(t, domain.HasCode(err, domain.ErrSessionStale))

	// the eviction already happened; the session is simply unbound now
	preview, err := f.engine.Preview(ctx, "sess-a")
	require.NoError(t, err)
	assert.Nil(t, preview.TableID)
	assert.Empty(t, preview.Lines)
}

func TestResolveRepopulatesLostCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Delete(ctx, "sess-a"))

	b, err := f.engine.Resolve(ctx, "sess-a")
	require.NoError(t, err)
	require.True(t, b.Bound())
	assert.Equal(t, f.table.ID, b.Table.ID)

	sess, err := f.sessions.Load(ctx, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, sess.TableID)
	assert.Equal(t, f.table.ID, *sess.TableID)
}

func TestResolveRepairsDriftedTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrder(ctx, b.Order.ID, true)
		if err != nil {
			return err
		}
		_, err = store.SettleOrder(ctx, tx, o, time.Now())
		return err
	}))

	res, err := f.engine.Resolve(ctx, "sess-a")
	require.NoError(t, err)
	assert.True(t, res.Stale)

	view, err := f.registry.Status(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableEmpty, view.Status)
}

func TestAdjustDraftEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	retired := f.store.AddProduct(domain.Product{Name: "Old Tea", Price: money("2.00"), IsActive: false})

	_, err := f.engine.AdjustDraft(ctx, "sess-a", retired.ID, 1)
	assert.True(t, domain.HasCode(err, domain.ErrNotFound))

	preview, err := f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, -1)
	require.NoError(t, err)
	assert.Empty(t, preview.Lines)

	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 2)
	require.NoError(t, err)
	preview, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 0)
	require.NoError(t, err)
	require.Len(t, preview.Lines, 1)
	assert.Equal(t, 2, preview.Lines[0].Quantity)

	preview, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, -2)
	require.NoError(t, err)
	assert.Empty(t, preview.Lines)
	assert.True(t, preview.GrandTotal.IsZero())
}

func TestLeaveReleasesOwnershipOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)
	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.cookie.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.engine.Leave(ctx, "sess-a"))

	view, err := f.registry.Status(ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TableOccupied, view.Status)
	assert.Equal(t, b.Order.ID, *view.CurrentOrderID)

	res, err := f.engine.Resolve(ctx, "sess-a")
	require.NoError(t, err)
	assert.False(t, res.Bound())
	assert.False(t, res.Stale)
	assert.True(t, res.Draft.IsEmpty())

	other, err := f.engine.Bind(ctx, "sess-b", f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Order.ID, other.Order.ID)
}

func TestLineQuantityCapOnDraftAndCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.engine.Bind(ctx, "sess-a", f.table.ID)
	require.NoError(t, err)

	_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, 1)
	require.NoError(t, err)

	for _, delta := range []int{math.MaxInt, domain.MaxLineQuantity, math.MinInt} {
		_, err = f.engine.AdjustDraft(ctx, "sess-a", f.coffee.ID, delta)
		assert.True(t, domain.HasCode(err, domain.ErrValidation), "delta %d", delta)
	}
	preview, err := f.engine.Preview(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, preview.Lines, 1)
	assert.Equal(t, 1, preview.Lines[0].Quantity)

	_, err = f.ledger.AddLineItem(ctx, b.Order.ID, f.coffee.ID, domain.MaxLineQuantity)
	require.NoError(t, err)

	_, err = f.engine.Commit(ctx, "sess-a")
	assert.True(t, domain.HasCode(err, domain.ErrValidation))

	detail, err := f.ledger.GetOrder(ctx, b.Order.ID)
	require.NoError(t, err)
	require.Len(t, detail.LineItems, 1)
	assert.Equal(t, domain.MaxLineQuantity, detail.LineItems[0].Quantity)

	sess, err := f.sessions.Load(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Draft.Quantity(f.coffee.ID), "a rejected commit keeps the draft")
}
