package store

import (
	"context"
	"errors"
	"time"

	"cafe-order-service/internal/domain"
)

// TableAggregate is a table with its current order and that order's line
// items fully loaded.
type TableAggregate struct {
	Table domain.Table
	// Order is nil when the table has no current order or it no longer exists.
	Order *domain.Order
}

// Consistent reports whether the occupancy invariant holds for the aggregate.
func (a TableAggregate) Consistent() bool {
	return a.Table.Consistent(a.Order)
}

// LoadOrder returns the order with its line items.
func LoadOrder(ctx context.Context, tx Tx, orderID int64, lock bool) (domain.Order, error) {
	order, err := tx.GetOrder(ctx, orderID, lock)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := tx.ListLineItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.LineItems = items
	return order, nil
}

// LoadTable returns the table aggregate. A dangling currentOrderId yields a
// nil Order rather than an error so callers can repair it.
func LoadTable(ctx context.Context, tx Tx, tableID int64, lock bool) (TableAggregate, error) {
	table, err := tx.GetTable(ctx, tableID, lock)
	if err != nil {
		return TableAggregate{}, err
	}
	agg := TableAggregate{Table: table}
	if table.CurrentOrderID == nil {
		return agg, nil
	}
	order, err := LoadOrder(ctx, tx, *table.CurrentOrderID, lock)
	if errors.Is(err, ErrNotFound) {
		return agg, nil
	}
	if err != nil {
		return TableAggregate{}, err
	}
	agg.Order = &order
	return agg, nil
}

// Recompute reloads the order's line items, recomputes the cached total and
// persists it.
func Recompute(ctx context.Context, tx Tx, order domain.Order) (domain.Order, error) {
	items, err := tx.ListLineItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.LineItems = items
	order.TotalAmount = domain.SumLineItems(items)
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// SettleOrder marks the order paid with a recomputed total. closeTime is set
// once and never overwritten.
func SettleOrder(ctx context.Context, tx Tx, order domain.Order, now time.Time) (domain.Order, error) {
	items, err := tx.ListLineItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.LineItems = items
	order.TotalAmount = domain.SumLineItems(items)
	order.IsPaid = true
	if order.CloseTime == nil {
		closed := now
		order.CloseTime = &closed
	}
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}
