package ledger

import (
	"context"
	"errors"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"
)

func (l *Ledger) GetOrder(ctx context.Context, orderID int64) (OrderDetail, error) {
	var out OrderDetail
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := store.LoadOrder(ctx, tx, orderID, false)
		if err != nil {
			return store.DomainError(err, "order", orderID)
		}
		out = OrderDetail{Order: order}
		table, err := tx.GetTable(ctx, order.TableID, false)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			out.TableName = table.Name
		}
		return nil
	})
	return out, err
}

// ListActive returns unpaid orders newest first. search filters by table
// name, case-insensitively.
func (l *Ledger) ListActive(ctx context.Context, search string) ([]domain.OrderSummary, error) {
	return l.list(ctx, store.OrderFilter{Paid: false, TableName: search})
}

// ListPaid returns the payment history ordered by close time, newest first.
func (l *Ledger) ListPaid(ctx context.Context) ([]domain.OrderSummary, error) {
	return l.list(ctx, store.OrderFilter{Paid: true})
}

func (l *Ledger) list(ctx context.Context, filter store.OrderFilter) ([]domain.OrderSummary, error) {
	var out []domain.OrderSummary
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, filter)
		return err
	})
	return out, err
}
