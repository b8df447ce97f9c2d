package reconcile

import (
	"context"
	"fmt"

	"cafe-order-service/internal/cart"
	"cafe-order-service/internal/catalog"
	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/ledger"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"
	"cafe-order-service/internal/tables"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustDraft adds delta units of a product to the session's draft. Positive
// deltas need an active product and snapshot its current price; negative
// deltas only touch lines already in the draft. A zero delta changes nothing.
func (e *Engine) AdjustDraft(ctx context.Context, sessionID string, productID int64, delta int) (cart.Preview, error) {
	b, err := e.Resolve(ctx, sessionID)
	if err != nil {
		return cart.Preview{}, err
	}
	if b.Stale {
		return cart.Preview{}, domain.StaleSessionError(*b.EvictedTableID)
	}
	if delta == 0 {
		return cart.BuildPreview(b.Table, b.Order, b.Draft), nil
	}

	draft := b.Draft
	if err := draft.Check(productID, delta); err != nil {
		return cart.Preview{}, err
	}
	if delta > 0 {
		var product domain.Product
		err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			product, err = catalog.ActiveProduct(ctx, tx, productID)
			return err
		})
		if err != nil {
			return cart.Preview{}, err
		}
		draft = draft.Apply(product.ID, product.Name, product.Price, delta)
	} else {
		draft = draft.Apply(productID, "", decimal.Zero, delta)
	}

	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return cart.Preview{}, err
	}
	sess.Draft = draft
	if err := e.sessions.Save(ctx, sessionID, sess); err != nil {
		return cart.Preview{}, fmt.Errorf("save session: %w", err)
	}
	return cart.BuildPreview(b.Table, b.Order, draft), nil
}

// Preview shows the table's sent lines next to the unsent draft.
func (e *Engine) Preview(ctx context.Context, sessionID string) (cart.Preview, error) {
	b, err := e.Resolve(ctx, sessionID)
	if err != nil {
		return cart.Preview{}, err
	}
	if b.Stale {
		return cart.Preview{}, domain.StaleSessionError(*b.EvictedTableID)
	}
	return cart.BuildPreview(b.Table, b.Order, b.Draft), nil
}

// Commit sends the draft to the table's order in one transaction. Draft
// prices are kept; lines for a product already on the order are merged into
// it. The draft is cleared afterwards; a failure to clear it is logged and
// does not fail the commit.
func (e *Engine) Commit(ctx context.Context, sessionID string) (domain.Order, error) {
	b, err := e.Resolve(ctx, sessionID)
	if err != nil {
		return domain.Order{}, err
	}
	if b.Stale {
		return domain.Order{}, domain.NoActiveTableError(map[string]any{"tableId": *b.EvictedTableID, "stale": true})
	}
	if b.Draft.IsEmpty() {
		return domain.Order{}, domain.EmptyCartError()
	}
	if !b.Bound() {
		return domain.Order{}, domain.NoActiveTableError(nil)
	}

	tableID := b.Table.ID
	var out domain.Order
	err = e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		agg, err := tables.LoadTx(ctx, tx, tableID, e.logger)
		if err != nil {
			return err
		}
		if !agg.Table.IsOwnedBy(sessionID) || agg.Order == nil {
			return domain.NoActiveTableError(map[string]any{"tableId": tableID})
		}
		order, err := ledger.OpenOrderTx(ctx, tx, agg.Order.ID)
		if err != nil {
			return err
		}
		for _, item := range b.Draft.Items {
			if _, err := catalog.ActiveProduct(ctx, tx, item.ProductID); err != nil {
				return err
			}
			if err := ledger.MergeTx(ctx, tx, order.ID, item.ProductID, item.Quantity, item.Price); err != nil {
				return store.DomainError(err, "order", order.ID)
			}
		}
		out, err = store.Recompute(ctx, tx, order)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.logger.Info("draft committed",
		zap.Int64("tableId", tableID),
		zap.Int64("orderId", out.ID),
		zap.Int("lines", len(b.Draft.Items)),
		zap.String("total", out.TotalAmount.StringFixed(domain.MoneyPlaces)),
	)
	if err := e.clearDraft(ctx, sessionID); err != nil {
		e.logger.Warn("clear draft after commit", zap.Int64("orderId", out.ID), zap.Error(err))
	}
	e.events.Publish(ctx, queue.Event{
		Type:    queue.OrderItemsChanged,
		TableID: out.TableID,
		OrderID: &out.ID,
		At:      e.now(),
		Data:    map[string]any{"totalAmount": out.TotalAmount.StringFixed(domain.MoneyPlaces), "source": "guest"},
	})
	return out, nil
}

func (e *Engine) clearDraft(ctx context.Context, sessionID string) error {
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Draft = cart.Draft{}
	return e.sessions.Save(ctx, sessionID, sess)
}
