// Package reconcile keeps a customer session's view of "my table" in step
// with the table registry and moves the session's draft into the table's
// order on commit.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"cafe-order-service/internal/cart"
	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"
	"cafe-order-service/internal/tables"

	"go.uber.org/zap"
)

type Engine struct {
	store    store.Store
	sessions cart.SessionStore
	events   queue.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

func New(s store.Store, sessions cart.SessionStore, events queue.Publisher, logger *zap.Logger) *Engine {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, sessions: sessions, events: events, logger: logger, now: time.Now}
}

// Binding is a session's table as the registry sees it.
type Binding struct {
	Table *domain.Table `json:"table"`
	// Order is the table's open order with its line items.
	Order *domain.Order `json:"order,omitempty"`
	Draft cart.Draft    `json:"draft"`
	// Stale is set when a cached binding no longer matched the registry and
	// was evicted together with the draft.
	Stale          bool   `json:"stale"`
	EvictedTableID *int64 `json:"evictedTableId,omitempty"`
}

func (b Binding) Bound() bool {
	return b.Table != nil
}

func (e *Engine) loadSession(ctx context.Context, sessionID string) (cart.Session, error) {
	s, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return cart.Session{}, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

// ownedTableTx returns the occupied table owned by sessionID with its order,
// repairing the table first when its order is gone or paid.
func (e *Engine) ownedTableTx(ctx context.Context, tx store.Tx, sessionID string) (store.TableAggregate, bool, error) {
	table, ok, err := tx.FindTableByOccupant(ctx, sessionID)
	if err != nil || !ok {
		return store.TableAggregate{}, false, err
	}
	agg, err := store.LoadTable(ctx, tx, table.ID, false)
	if err != nil {
		return store.TableAggregate{}, false, store.DomainError(err, "table", table.ID)
	}
	if !agg.Consistent() {
		if agg, err = tables.LoadTx(ctx, tx, table.ID, e.logger); err != nil {
			return store.TableAggregate{}, false, err
		}
	}
	if !agg.Table.IsOwnedBy(sessionID) || agg.Order == nil {
		return store.TableAggregate{}, false, nil
	}
	return agg, true, nil
}

// Resolve re-derives the session's table from the registry. A cached binding
// the registry no longer backs is evicted along with the draft and reported
// as Stale. A missing cache entry is repopulated from the registry.
func (e *Engine) Resolve(ctx context.Context, sessionID string) (Binding, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return Binding{}, err
	}

	var (
		agg   store.TableAggregate
		owned bool
	)
	err = e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		agg, owned, err = e.ownedTableTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return Binding{}, err
	}

	if !owned {
		if sess.TableID == nil {
			return Binding{Draft: sess.Draft}, nil
		}
		evicted := *sess.TableID
		if err := e.sessions.Delete(ctx, sessionID); err != nil {
			return Binding{}, fmt.Errorf("evict session: %w", err)
		}
		e.logger.Info("stale table session evicted", zap.Int64("tableId", evicted))
		return Binding{Stale: true, EvictedTableID: &evicted}, nil
	}

	if sess.TableID == nil || *sess.TableID != agg.Table.ID {
		id := agg.Table.ID
		sess.TableID = &id
		if err := e.sessions.Save(ctx, sessionID, sess); err != nil {
			return Binding{}, fmt.Errorf("save session: %w", err)
		}
	}
	return Binding{Table: &agg.Table, Order: agg.Order, Draft: sess.Draft}, nil
}

// Bind seats the session at tableID. An empty table is claimed and opened in
// one transaction; a staff-opened table without an owner is claimed as is;
// binding again to the session's own table is a no-op. Tables owned by
// another session, reserved tables, and a second table for a seated session
// are ConflictErrors.
func (e *Engine) Bind(ctx context.Context, sessionID string, tableID int64) (Binding, error) {
	var (
		agg    store.TableAggregate
		opened bool
	)
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		opened = false
		var err error
		agg, err = tables.LoadTx(ctx, tx, tableID, e.logger)
		if err != nil {
			return err
		}
		if agg.Table.IsOwnedBy(sessionID) {
			return nil
		}

		current, seated, err := tx.FindTableByOccupant(ctx, sessionID)
		if err != nil {
			return err
		}
		if seated && current.ID != tableID {
			return domain.ConflictError("Session is already seated at another table", map[string]any{
				"tableId":        tableID,
				"currentTableId": current.ID,
			})
		}

		switch agg.Table.Status {
		case domain.TableEmpty:
			owner := sessionID
			order, err := tables.OpenTx(ctx, tx, &agg.Table, &owner, e.now())
			if err != nil {
				return err
			}
			agg.Order = &order
			opened = true
			return nil
		case domain.TableOccupied:
			if agg.Table.OccupiedBy != nil {
				return domain.ConflictError("Table is occupied by another guest", map[string]any{
					"tableId": tableID,
					"status":  agg.Table.Status,
				})
			}
			owner := sessionID
			agg.Table.OccupiedBy = &owner
			if err := tx.UpdateTable(ctx, agg.Table); err != nil {
				return store.DomainError(err, "table", tableID)
			}
			return nil
		default:
			return domain.ConflictError("Table is reserved", map[string]any{
				"tableId": tableID,
				"status":  agg.Table.Status,
			})
		}
	})
	if err != nil {
		return Binding{}, err
	}

	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return Binding{}, err
	}
	if sess.TableID != nil && *sess.TableID != tableID {
		// the draft belonged to an earlier sitting
		sess.Draft = cart.Draft{}
	}
	sess.TableID = &tableID
	if err := e.sessions.Save(ctx, sessionID, sess); err != nil {
		return Binding{}, fmt.Errorf("save session: %w", err)
	}

	if opened {
		e.logger.Info("table claimed by guest", zap.Int64("tableId", tableID), zap.Int64("orderId", agg.Order.ID))
		e.events.Publish(ctx, queue.Event{Type: queue.TableOpened, TableID: tableID, OrderID: &agg.Order.ID, At: e.now(), Data: map[string]any{"source": "guest"}})
	}
	return Binding{Table: &agg.Table, Order: agg.Order, Draft: sess.Draft}, nil
}

// Leave drops the session's binding and draft and releases its ownership of
// the table. The table's order stays open for staff.
func (e *Engine) Leave(ctx context.Context, sessionID string) error {
	err := e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		table, ok, err := tx.FindTableByOccupant(ctx, sessionID)
		if err != nil || !ok {
			return err
		}
		table, err = tables.GetTableTx(ctx, tx, table.ID, true)
		if err != nil {
			return err
		}
		if !table.IsOwnedBy(sessionID) {
			return nil
		}
		table.OccupiedBy = nil
		return store.DomainError(tx.UpdateTable(ctx, table), "table", table.ID)
	})
	if err != nil {
		return err
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
