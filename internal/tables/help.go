package tables

import (
	"context"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/queue"
	"cafe-order-service/internal/store"
)

// RequestHelp raises the table's help flag whatever its status.
func (r *Registry) RequestHelp(ctx context.Context, tableID int64) (domain.Table, error) {
	return r.setHelp(ctx, tableID, true)
}

func (r *Registry) ResolveHelp(ctx context.Context, tableID int64) (domain.Table, error) {
	return r.setHelp(ctx, tableID, false)
}

func (r *Registry) setHelp(ctx context.Context, tableID int64, requested bool) (domain.Table, error) {
	var (
		out     domain.Table
		changed bool
	)
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		table, err := GetTableTx(ctx, tx, tableID, true)
		if err != nil {
			return err
		}
		changed = table.HelpRequested != requested
		table.HelpRequested = requested
		if changed {
			if err := tx.UpdateTable(ctx, table); err != nil {
				return store.DomainError(err, "table", tableID)
			}
		}
		out = table
		return nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	if changed {
		eventType := queue.TableHelpResolved
		if requested {
			eventType = queue.TableHelpRequested
		}
		r.publish(ctx, eventType, tableID, nil, map[string]any{"tableName": out.Name})
	}
	return out, nil
}

func (r *Registry) ListHelpRequests(ctx context.Context) ([]domain.HelpRequest, error) {
	var out []domain.HelpRequest
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListHelpRequests(ctx)
		return err
	})
	return out, err
}
