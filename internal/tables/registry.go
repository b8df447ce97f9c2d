// Package tables owns the table lifecycle: opening and closing orders,
// reservations, help requests and the floor read path.
package tables

import (
	"context"
	"time"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"

	"go.uber.org/zap"
)

type Registry struct {
	store  store.Store
	events queue.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewRegistry(s store.Store, events queue.Publisher, logger *zap.Logger) *Registry {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: s, events: events, logger: logger, now: time.Now}
}

// CloseResult describes what closeOrder did. Changed is false when the table
// was already empty.
type CloseResult struct {
	Table         domain.Table  `json:"table"`
	Changed       bool          `json:"changed"`
	ClosedOrderID *int64        `json:"closedOrderId,omitempty"`
	Order         *domain.Order `json:"order,omitempty"`
	Repaired      bool          `json:"repaired"`
}

func (r *Registry) publish(ctx context.Context, eventType string, tableID int64, orderID *int64, data map[string]any) {
	r.events.Publish(ctx, queue.Event{
		Type:    eventType,
		TableID: tableID,
		OrderID: orderID,
		At:      r.now(),
		Data:    data,
	})
}

// StartOrder opens a new order on an empty table. Any other status is a
// ConflictError carrying the table's current state.
func (r *Registry) StartOrder(ctx context.Context, tableID int64) (store.TableAggregate, error) {
	var out store.TableAggregate
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		agg, err := LoadTx(ctx, tx, tableID, r.logger)
		if err != nil {
			return err
		}
		order, err := OpenTx(ctx, tx, &agg.Table, nil, r.now())
		if err != nil {
			return err
		}
		out = store.TableAggregate{Table: agg.Table, Order: &order}
		return nil
	})
	if err != nil {
		return store.TableAggregate{}, err
	}
	r.logger.Info("table opened", zap.Int64("tableId", tableID), zap.Int64("orderId", out.Order.ID))
	r.publish(ctx, queue.TableOpened, tableID, &out.Order.ID, nil)
	return out, nil
}

// CloseOrder settles an occupied table's order and frees the table, or
// clears a reservation. Closing an empty table changes nothing.
func (r *Registry) CloseOrder(ctx context.Context, tableID int64) (CloseResult, error) {
	var (
		res         CloseResult
		wasReserved bool
	)
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res, wasReserved = CloseResult{}, false

		agg, err := store.LoadTable(ctx, tx, tableID, true)
		if err != nil {
			return store.DomainError(err, "table", tableID)
		}

		if !agg.Consistent() {
			if _, err := RepairTx(ctx, tx, &agg, r.logger); err != nil {
				return err
			}
			res = CloseResult{Table: agg.Table, Changed: true, Repaired: true}
			return nil
		}

		switch agg.Table.Status {
		case domain.TableEmpty:
			res = CloseResult{Table: agg.Table}
			return nil
		case domain.TableReserved:
			if err := agg.Table.CancelReservation(); err != nil {
				return err
			}
			if err := tx.UpdateTable(ctx, agg.Table); err != nil {
				return store.DomainError(err, "table", tableID)
			}
			wasReserved = true
			res = CloseResult{Table: agg.Table, Changed: true}
			return nil
		}

		paid, err := store.SettleOrder(ctx, tx, *agg.Order, r.now())
		if err != nil {
			return store.DomainError(err, "order", agg.Order.ID)
		}
		agg.Table.Free()
		if err := tx.UpdateTable(ctx, agg.Table); err != nil {
			return store.DomainError(err, "table", tableID)
		}
		res = CloseResult{Table: agg.Table, Changed: true, ClosedOrderID: &paid.ID, Order: &paid}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	switch {
	case wasReserved:
		r.publish(ctx, queue.TableReservationCanceled, tableID, nil, nil)
	case res.ClosedOrderID != nil:
		r.logger.Info("table closed", zap.Int64("tableId", tableID), zap.Int64("orderId", *res.ClosedOrderID))
		r.publish(ctx, queue.OrderPaid, tableID, res.ClosedOrderID, map[string]any{"totalAmount": res.Order.TotalAmount.StringFixed(domain.MoneyPlaces)})
		r.publish(ctx, queue.TableClosed, tableID, res.ClosedOrderID, nil)
	case res.Repaired:
		r.publish(ctx, queue.TableClosed, tableID, nil, map[string]any{"repaired": true})
	}
	return res, nil
}

// Reserve holds an empty table. Reserving a reserved table succeeds without
// change; an occupied table is a ConflictError.
func (r *Registry) Reserve(ctx context.Context, tableID int64) (domain.Table, error) {
	var (
		out     domain.Table
		changed bool
	)
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		agg, err := LoadTx(ctx, tx, tableID, r.logger)
		if err != nil {
			return err
		}
		changed = agg.Table.Status != domain.TableReserved
		if err := agg.Table.Reserve(); err != nil {
			return err
		}
		if changed {
			if err := tx.UpdateTable(ctx, agg.Table); err != nil {
				return store.DomainError(err, "table", tableID)
			}
		}
		out = agg.Table
		return nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	if changed {
		r.publish(ctx, queue.TableReserved, tableID, nil, nil)
	}
	return out, nil
}

// CancelReservation returns a reserved table to empty.
func (r *Registry) CancelReservation(ctx context.Context, tableID int64) (domain.Table, error) {
	var out domain.Table
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		agg, err := LoadTx(ctx, tx, tableID, r.logger)
		if err != nil {
			return err
		}
		if err := agg.Table.CancelReservation(); err != nil {
			return err
		}
		if err := tx.UpdateTable(ctx, agg.Table); err != nil {
			return store.DomainError(err, "table", tableID)
		}
		out = agg.Table
		return nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	r.publish(ctx, queue.TableReservationCanceled, tableID, nil, nil)
	return out, nil
}
