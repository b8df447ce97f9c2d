package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          int64           `json:"id"`
	TableID     int64           `json:"tableId"`
	OpenTime    time.Time       `json:"openTime"`
	CloseTime   *time.Time      `json:"closeTime"`
	IsPaid      bool            `json:"isPaid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	LineItems   []LineItem      `json:"lineItems"`
}

type LineItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (li LineItem) Total() decimal.Decimal {
	return LineTotal(li.Quantity, li.Price)
}

// SumLineItems is the authoritative order total.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	return RoundMoney(total)
}

// OrderSummary is the list projection for active and paid orders.
type OrderSummary struct {
	ID          int64           `json:"id"`
	TableID     int64           `json:"tableId"`
	TableName   string          `json:"tableName"`
	OpenTime    time.Time       `json:"openTime"`
	CloseTime   *time.Time      `json:"closeTime"`
	IsPaid      bool            `json:"isPaid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type DraftItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func (d DraftItem) Total() decimal.Decimal {
	return LineTotal(d.Quantity, d.Price)
}

// MaxLineQuantity caps the quantity of one product on an order or draft.
const MaxLineQuantity = 999

// CheckLineQuantity validates adding delta units to a line holding current
// units. The delta is bounded by MaxLineQuantity in both directions and an
// increase may not push the line past it. A result of zero or less is
// allowed; callers treat it as removal.
func CheckLineQuantity(current, delta int) error {
	if delta > MaxLineQuantity || delta < -MaxLineQuantity || (delta > 0 && current+delta > MaxLineQuantity) {
		return ValidationError(fmt.Sprintf("Quantity cannot exceed %d", MaxLineQuantity), map[string]any{
			"field":   "quantity",
			"current": current,
			"delta":   delta,
			"max":     MaxLineQuantity,
		})
	}
	return nil
}
