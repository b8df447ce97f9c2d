package memstore

import (
	"cafe-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

func copyTable(t domain.Table) domain.Table {
	if t.OccupiedBy != nil {
		v := *t.OccupiedBy
		t.OccupiedBy = &v
	}
	if t.CurrentOrderID != nil {
		v := *t.CurrentOrderID
		t.CurrentOrderID = &v
	}
	return t
}

func copyOrder(o domain.Order) domain.Order {
	if o.CloseTime != nil {
		v := *o.CloseTime
		o.CloseTime = &v
	}
	if o.LineItems != nil {
		o.LineItems = append([]domain.LineItem(nil), o.LineItems...)
	}
	return o
}

func mustDecimal(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
