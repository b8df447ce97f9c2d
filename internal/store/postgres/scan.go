package postgres

import (
	"time"

	"cafe-order-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func textPtr(v pgtype.Text) *string {
	if v.Valid {
		return &v.String
	}
	return nil
}

func int8Ptr(v pgtype.Int8) *int64 {
	if v.Valid {
		return &v.Int64
	}
	return nil
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if v.Valid {
		return &v.Time
	}
	return nil
}

func numericToDecimal(v pgtype.Numeric) decimal.Decimal {
	if !v.Valid || v.NaN || v.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.Int, v.Exp)
}

// money renders a decimal for a `$n::numeric` parameter.
func money(v decimal.Decimal) string {
	return v.StringFixed(domain.MoneyPlaces)
}

const tableColumns = `id, name, location, capacity, status, occupied_by, current_order_id, help_requested, updated_at`

func scanTable(row pgx.Row) (domain.Table, error) {
	var (
		t          domain.Table
		status     string
		occupiedBy pgtype.Text
		orderID    pgtype.Int8
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Location, &t.Capacity, &status, &occupiedBy, &orderID, &t.HelpRequested, &t.UpdatedAt); err != nil {
		return domain.Table{}, err
	}
	t.Status = domain.TableStatus(status)
	t.OccupiedBy = textPtr(occupiedBy)
	t.CurrentOrderID = int8Ptr(orderID)
	return t, nil
}

const orderColumns = `id, table_id, open_time, close_time, is_paid, total_amount`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o         domain.Order
		closeTime pgtype.Timestamptz
		total     pgtype.Numeric
	)
	if err := row.Scan(&o.ID, &o.TableID, &o.OpenTime, &closeTime, &o.IsPaid, &total); err != nil {
		return domain.Order{}, err
	}
	o.CloseTime = timePtr(closeTime)
	o.TotalAmount = numericToDecimal(total)
	return o, nil
}

const lineItemColumns = `li.id, li.order_id, li.product_id, coalesce(p.name, ''), li.quantity, li.price`

func scanLineItem(row pgx.Row) (domain.LineItem, error) {
	var (
		li    domain.LineItem
		price pgtype.Numeric
	)
	if err := row.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.ProductName, &li.Quantity, &price); err != nil {
		return domain.LineItem{}, err
	}
	li.Price = numericToDecimal(price)
	return li, nil
}

const productColumns = `p.id, p.name, p.price, p.category_id, coalesce(c.name, ''), p.description, p.is_active`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p          domain.Product
		price      pgtype.Numeric
		categoryID pgtype.Int8
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &categoryID, &p.CategoryName, &p.Description, &p.IsActive); err != nil {
		return domain.Product{}, err
	}
	p.Price = numericToDecimal(price)
	p.CategoryID = int8Ptr(categoryID)
	return p, nil
}
