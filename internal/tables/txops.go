package tables

import (
	"context"
	"errors"
	"time"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The helpers below run inside a caller's transaction so the ledger and the
// reconciliation engine can combine them with their own writes.

// GetTableTx loads a table, reporting a missing row as NotFoundError.
func GetTableTx(ctx context.Context, tx store.Tx, tableID int64, lock bool) (domain.Table, error) {
	t, err := tx.GetTable(ctx, tableID, lock)
	return t, store.DomainError(err, "table", tableID)
}

// LoadTx loads the locked aggregate and repairs drift before the caller acts
// on it.
func LoadTx(ctx context.Context, tx store.Tx, tableID int64, logger *zap.Logger) (store.TableAggregate, error) {
	agg, err := store.LoadTable(ctx, tx, tableID, true)
	if err != nil {
		return store.TableAggregate{}, store.DomainError(err, "table", tableID)
	}
	if _, err := RepairTx(ctx, tx, &agg, logger); err != nil {
		return store.TableAggregate{}, err
	}
	return agg, nil
}

// OpenTx creates a fresh order for an empty table and marks it occupied.
// occupant is nil when staff open the table.
func OpenTx(ctx context.Context, tx store.Tx, table *domain.Table, occupant *string, now time.Time) (domain.Order, error) {
	if err := table.Guard(domain.TableOccupied); err != nil {
		return domain.Order{}, err
	}
	order, err := tx.InsertOrder(ctx, domain.Order{
		TableID:     table.ID,
		OpenTime:    now,
		TotalAmount: decimal.Zero,
	})
	if err != nil {
		return domain.Order{}, store.DomainError(err, "table", table.ID)
	}
	if err := table.Open(order.ID, occupant); err != nil {
		return domain.Order{}, err
	}
	if err := tx.UpdateTable(ctx, *table); err != nil {
		return domain.Order{}, store.DomainError(err, "table", table.ID)
	}
	order.LineItems = []domain.LineItem{}
	return order, nil
}

// RepairTx rewrites a table whose occupancy disagrees with its order: an
// occupied table with a missing, paid or foreign order is freed, and a
// non-occupied table drops its stale order reference. agg must be locked.
func RepairTx(ctx context.Context, tx store.Tx, agg *store.TableAggregate, logger *zap.Logger) (bool, error) {
	if agg.Consistent() {
		return false, nil
	}
	before := agg.Table
	if agg.Table.Status == domain.TableOccupied {
		agg.Table.Free()
	} else {
		agg.Table.CurrentOrderID = nil
		agg.Table.OccupiedBy = nil
	}
	agg.Order = nil
	if err := tx.UpdateTable(ctx, agg.Table); err != nil {
		return false, store.DomainError(err, "table", agg.Table.ID)
	}
	if logger != nil {
		logger.Warn("table state repaired",
			zap.Int64("tableId", before.ID),
			zap.String("status", string(before.Status)),
			zap.Any("currentOrderId", before.CurrentOrderID),
			zap.String("newStatus", string(agg.Table.Status)),
		)
	}
	return true, nil
}

// ReleaseForOrderTx frees the table only while it still points at orderID.
func ReleaseForOrderTx(ctx context.Context, tx store.Tx, tableID, orderID int64) (bool, error) {
	table, err := tx.GetTable(ctx, tableID, true)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if table.CurrentOrderID == nil || *table.CurrentOrderID != orderID {
		return false, nil
	}
	table.Free()
	if err := tx.UpdateTable(ctx, table); err != nil {
		return false, store.DomainError(err, "table", tableID)
	}
	return true, nil
}
