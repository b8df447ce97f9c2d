package tables

import (
	"context"
	"errors"
	"strings"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxTableNameLength = 64

// TableView is the status read path shared by staff screens and customers.
type TableView struct {
	TableID        int64              `json:"tableId"`
	Name           string             `json:"name"`
	Location       string             `json:"location"`
	Capacity       int                `json:"capacity"`
	Status         domain.TableStatus `json:"status"`
	CurrentOrderID *int64             `json:"currentOrderId"`
	HelpRequested  bool               `json:"helpRequested"`
	LineItems      []domain.LineItem  `json:"lineItems"`
	TotalAmount    decimal.Decimal    `json:"totalAmount"`
}

func NewTableView(agg store.TableAggregate) TableView {
	view := TableView{
		TableID:        agg.Table.ID,
		Name:           agg.Table.Name,
		Location:       agg.Table.Location,
		Capacity:       agg.Table.Capacity,
		Status:         agg.Table.Status,
		CurrentOrderID: agg.Table.CurrentOrderID,
		HelpRequested:  agg.Table.HelpRequested,
		LineItems:      []domain.LineItem{},
		TotalAmount:    decimal.Zero,
	}
	if agg.Order != nil {
		view.LineItems = agg.Order.LineItems
		view.TotalAmount = domain.SumLineItems(agg.Order.LineItems)
	}
	return view
}

type FloorSection struct {
	Location string         `json:"location"`
	Tables   []domain.Table `json:"tables"`
}

// PublicTable is what unauthenticated guests see of a table: enough to pick
// a seat, nothing about its order or help state.
type PublicTable struct {
	ID       int64              `json:"id"`
	Name     string             `json:"name"`
	Location string             `json:"location"`
	Capacity int                `json:"capacity"`
	Status   domain.TableStatus `json:"status"`
}

type PublicFloorSection struct {
	Location string        `json:"location"`
	Tables   []PublicTable `json:"tables"`
}

func PublicFloorPlan(sections []FloorSection) []PublicFloorSection {
	out := make([]PublicFloorSection, 0, len(sections))
	for _, section := range sections {
		ps := PublicFloorSection{Location: section.Location, Tables: make([]PublicTable, 0, len(section.Tables))}
		for _, t := range section.Tables {
			ps.Tables = append(ps.Tables, PublicTable{
				ID:       t.ID,
				Name:     t.Name,
				Location: t.Location,
				Capacity: t.Capacity,
				Status:   t.Status,
			})
		}
		out = append(out, ps)
	}
	return out
}

// Status returns the table with its open order. A table whose occupancy
// disagrees with its order is repaired first.
func (r *Registry) Status(ctx context.Context, tableID int64) (TableView, error) {
	var out TableView
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		agg, err := store.LoadTable(ctx, tx, tableID, false)
		if err != nil {
			return store.DomainError(err, "table", tableID)
		}
		if !agg.Consistent() {
			if agg, err = LoadTx(ctx, tx, tableID, r.logger); err != nil {
				return err
			}
		}
		out = NewTableView(agg)
		return nil
	})
	return out, err
}

func (r *Registry) ListTables(ctx context.Context) ([]domain.Table, error) {
	var out []domain.Table
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListTables(ctx)
		return err
	})
	return out, err
}

// FloorPlan groups tables by location, keeping the store's location/name
// ordering.
func (r *Registry) FloorPlan(ctx context.Context) ([]FloorSection, error) {
	all, err := r.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByLocation(all), nil
}

func GroupByLocation(all []domain.Table) []FloorSection {
	sections := make([]FloorSection, 0)
	index := make(map[string]int)
	for _, t := range all {
		i, ok := index[t.Location]
		if !ok {
			i = len(sections)
			index[t.Location] = i
			sections = append(sections, FloorSection{Location: t.Location, Tables: []domain.Table{}})
		}
		sections[i].Tables = append(sections[i].Tables, t)
	}
	return sections
}

func (r *Registry) CreateTable(ctx context.Context, nt store.NewTable) (domain.Table, error) {
	nt.Name = strings.TrimSpace(nt.Name)
	nt.Location = strings.TrimSpace(nt.Location)
	if nt.Name == "" {
		return domain.Table{}, domain.ValidationError("Table name is required", map[string]any{"field": "name"})
	}
	if len(nt.Name) > maxTableNameLength {
		return domain.Table{}, domain.ValidationError("Table name is too long", map[string]any{"field": "name", "max": maxTableNameLength})
	}
	if nt.Capacity < 0 {
		return domain.Table{}, domain.ValidationError("Capacity must be zero or greater", map[string]any{"field": "capacity"})
	}

	var out domain.Table
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.InsertTable(ctx, nt)
		if errors.Is(err, store.ErrConflict) {
			return domain.ConflictError("Table name already exists", map[string]any{"name": nt.Name})
		}
		return err
	})
	if err != nil {
		return domain.Table{}, err
	}
	r.logger.Info("table created", zap.Int64("tableId", out.ID), zap.String("name", out.Name))
	return out, nil
}

// DeleteTable removes a table that has no current order. Tables with order
// history are kept for reporting.
func (r *Registry) DeleteTable(ctx context.Context, tableID int64) error {
	return r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		table, err := GetTableTx(ctx, tx, tableID, true)
		if err != nil {
			return err
		}
		if table.CurrentOrderID != nil || table.Status == domain.TableOccupied {
			return domain.ConflictError("Table has an active order and cannot be deleted", map[string]any{
				"tableId":        table.ID,
				"status":         table.Status,
				"currentOrderId": table.CurrentOrderID,
			})
		}
		err = tx.DeleteTable(ctx, tableID)
		if errors.Is(err, store.ErrConflict) {
			return domain.ConflictError("Table has order history and cannot be deleted", map[string]any{"tableId": tableID})
		}
		return store.DomainError(err, "table", tableID)
	})
}
