// Package ledger edits persisted orders: line items, totals and payment.
// Totals are always recomputed from stored line items.
package ledger

import (
	"context"
	"time"

	"cafe-order-service/internal/catalog"
	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"
	"cafe-order-service/internal/tables"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Ledger struct {
	store  store.Store
	events queue.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func New(s store.Store, events queue.Publisher, logger *zap.Logger) *Ledger {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: s, events: events, logger: logger, now: time.Now}
}

// OrderDetail is an order with its line items and table name.
type OrderDetail struct {
	domain.Order
	TableName string `json:"tableName"`
}

type PaymentResult struct {
	Order         domain.Order `json:"order"`
	AlreadyPaid   bool         `json:"alreadyPaid"`
	TableReleased bool         `json:"tableReleased"`
}

func (l *Ledger) itemsChanged(ctx context.Context, order domain.Order) {
	l.events.Publish(ctx, queue.Event{
		Type:    queue.OrderItemsChanged,
		TableID: order.TableID,
		OrderID: &order.ID,
		At:      l.now(),
		Data:    map[string]any{"totalAmount": order.TotalAmount.StringFixed(domain.MoneyPlaces)},
	})
}

// OpenOrderTx locks an order for editing. Paid orders are immutable.
func OpenOrderTx(ctx context.Context, tx store.Tx, orderID int64) (domain.Order, error) {
	order, err := tx.GetOrder(ctx, orderID, true)
	if err != nil {
		return domain.Order{}, store.DomainError(err, "order", orderID)
	}
	if order.IsPaid {
		return domain.Order{}, domain.ConflictError("Order is already paid", map[string]any{"orderId": orderID})
	}
	return order, nil
}

// MergeTx adds quantity of productID to the order. An existing line keeps its
// price snapshot; price is used only when a new line is inserted.
func MergeTx(ctx context.Context, tx store.Tx, orderID, productID int64, quantity int, price decimal.Decimal) error {
	existing, ok, err := tx.FindLineItemByProduct(ctx, orderID, productID)
	if err != nil {
		return err
	}
	current := 0
	if ok {
		current = existing.Quantity
	}
	if err := domain.CheckLineQuantity(current, quantity); err != nil {
		return err
	}
	if ok {
		return tx.UpdateLineItemQuantity(ctx, existing.ID, existing.Quantity+quantity)
	}
	_, err = tx.InsertLineItem(ctx, domain.LineItem{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     domain.RoundMoney(price),
	})
	return err
}

// AddLineItem adds an active product at its current price, merging into an
// existing line for the same product.
func (l *Ledger) AddLineItem(ctx context.Context, orderID, productID int64, quantity int) (domain.Order, error) {
	if quantity <= 0 {
		return domain.Order{}, domain.ValidationError("Quantity must be greater than zero", map[string]any{"field": "quantity"})
	}
	if err := domain.CheckLineQuantity(0, quantity); err != nil {
		return domain.Order{}, err
	}
	var out domain.Order
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := OpenOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		product, err := catalog.ActiveProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if err := MergeTx(ctx, tx, order.ID, product.ID, quantity, product.Price); err != nil {
			return store.DomainError(err, "order", orderID)
		}
		out, err = store.Recompute(ctx, tx, order)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	l.itemsChanged(ctx, out)
	return out, nil
}

// AdjustLineItemQuantity applies delta to a line; a resulting quantity of
// zero or less removes the line.
func (l *Ledger) AdjustLineItemQuantity(ctx context.Context, lineItemID int64, delta int) (domain.Order, error) {
	if delta == 0 {
		return domain.Order{}, domain.ValidationError("Delta must not be zero", map[string]any{"field": "delta"})
	}
	if err := domain.CheckLineQuantity(0, delta); err != nil {
		return domain.Order{}, err
	}
	return l.editLine(ctx, lineItemID, func(ctx context.Context, tx store.Tx, item domain.LineItem) error {
		if err := domain.CheckLineQuantity(item.Quantity, delta); err != nil {
			return err
		}
		quantity := item.Quantity + delta
		if quantity <= 0 {
			return tx.DeleteLineItem(ctx, item.ID)
		}
		return tx.UpdateLineItemQuantity(ctx, item.ID, quantity)
	})
}

func (l *Ledger) RemoveLineItem(ctx context.Context, lineItemID int64) (domain.Order, error) {
	return l.editLine(ctx, lineItemID, func(ctx context.Context, tx store.Tx, item domain.LineItem) error {
		return tx.DeleteLineItem(ctx, item.ID)
	})
}

func (l *Ledger) editLine(ctx context.Context, lineItemID int64, edit func(ctx context.Context, tx store.Tx, item domain.LineItem) error) (domain.Order, error) {
	var out domain.Order
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.GetLineItem(ctx, lineItemID, false)
		if err != nil {
			return store.DomainError(err, "line item", lineItemID)
		}
		// order before line, same as commit
		order, err := OpenOrderTx(ctx, tx, item.OrderID)
		if err != nil {
			return err
		}
		item, err = tx.GetLineItem(ctx, lineItemID, true)
		if err != nil {
			return store.DomainError(err, "line item", lineItemID)
		}
		if err := edit(ctx, tx, item); err != nil {
			return store.DomainError(err, "line item", lineItemID)
		}
		out, err = store.Recompute(ctx, tx, order)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	l.itemsChanged(ctx, out)
	return out, nil
}

// MarkPaid settles the order and frees its table when the table still points
// at it. Paying a paid order succeeds without touching closeTime and still
// repairs a table left pointing at it.
func (l *Ledger) MarkPaid(ctx context.Context, orderID int64) (PaymentResult, error) {
	var res PaymentResult
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = PaymentResult{}
		head, err := tx.GetOrder(ctx, orderID, false)
		if err != nil {
			return store.DomainError(err, "order", orderID)
		}
		// table before order, same as closeOrder
		released, err := tables.ReleaseForOrderTx(ctx, tx, head.TableID, orderID)
		if err != nil {
			return err
		}
		order, err := tx.GetOrder(ctx, orderID, true)
		if err != nil {
			return store.DomainError(err, "order", orderID)
		}
		res.AlreadyPaid = order.IsPaid
		res.TableReleased = released
		if order.IsPaid {
			res.Order, err = store.LoadOrder(ctx, tx, orderID, false)
			return err
		}
		res.Order, err = store.SettleOrder(ctx, tx, order, l.now())
		return err
	})
	if err != nil {
		return PaymentResult{}, err
	}

	order := res.Order
	if res.AlreadyPaid && res.TableReleased {
		l.logger.Warn("table released for an order that was already paid", zap.Int64("orderId", order.ID), zap.Int64("tableId", order.TableID))
	}
	if !res.AlreadyPaid {
		l.logger.Info("order paid", zap.Int64("orderId", order.ID), zap.String("total", order.TotalAmount.StringFixed(domain.MoneyPlaces)))
		l.events.Publish(ctx, queue.Event{
			Type:    queue.OrderPaid,
			TableID: order.TableID,
			OrderID: &order.ID,
			At:      l.now(),
			Data:    map[string]any{"totalAmount": order.TotalAmount.StringFixed(domain.MoneyPlaces)},
		})
	}
	if res.TableReleased {
		l.events.Publish(ctx, queue.Event{Type: queue.TableClosed, TableID: order.TableID, OrderID: &order.ID, At: l.now()})
	}
	return res, nil
}
