// Package store defines the repository accessors and transactional boundary
// shared by the table, ledger and reconciliation services.
package store

import (
	"context"
	"errors"

	"cafe-order-service/internal/domain"
)

var (
	// ErrNotFound is returned by accessors when the row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write loses a concurrent race
	// (second open order for a table, serialization failure, deadlock).
	ErrConflict = errors.New("store: conflict")
	// ErrInvalid is returned when the database rejects a value (check
	// constraint, numeric out of range).
	ErrInvalid = errors.New("store: invalid value")
)

// Store runs fn inside a single atomic unit. Returning an error from fn
// rolls back every write made through tx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close()
}

// OrderFilter selects orders for the list projections.
type OrderFilter struct {
	Paid      bool
	TableName string
}

type NewTable struct {
	Name     string
	Location string
	Capacity int
}

// Tx exposes row-level accessors. lock=true takes a row lock held until the
// transaction ends.
type Tx interface {
	GetTable(ctx context.Context, id int64, lock bool) (domain.Table, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	// FindTableByOccupant returns the occupied table owned by sessionID.
	FindTableByOccupant(ctx context.Context, sessionID string) (domain.Table, bool, error)
	InsertTable(ctx context.Context, t NewTable) (domain.Table, error)
	UpdateTable(ctx context.Context, t domain.Table) error
	DeleteTable(ctx context.Context, id int64) error
	ListHelpRequests(ctx context.Context) ([]domain.HelpRequest, error)

	// GetOrder returns the order header without line items.
	GetOrder(ctx context.Context, id int64, lock bool) (domain.Order, error)
	InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	UpdateOrder(ctx context.Context, o domain.Order) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.OrderSummary, error)

	ListLineItems(ctx context.Context, orderID int64) ([]domain.LineItem, error)
	GetLineItem(ctx context.Context, id int64, lock bool) (domain.LineItem, error)
	FindLineItemByProduct(ctx context.Context, orderID, productID int64) (domain.LineItem, bool, error)
	InsertLineItem(ctx context.Context, li domain.LineItem) (domain.LineItem, error)
	UpdateLineItemQuantity(ctx context.Context, id int64, quantity int) error
	DeleteLineItem(ctx context.Context, id int64) error

	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error)
}

// DomainError maps the store sentinels onto domain errors for entity/id.
// Other errors pass through unchanged.
func DomainError(err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return domain.NotFoundError(entity, id)
	case errors.Is(err, ErrInvalid):
		return domain.ValidationError("Invalid value for "+entity, map[string]any{
			"entity": entity,
			"id":     id,
		})
	case errors.Is(err, ErrConflict):
		return domain.ConflictError("Concurrent update on "+entity+", retry the request", map[string]any{
			"entity": entity,
			"id":     id,
		})
	}
	return err
}
