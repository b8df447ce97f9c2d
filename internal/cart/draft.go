// Package cart holds the customer's draft: items chosen but not yet sent to
// the table's order. Draft operations are pure; persistence lives behind
// SessionStore.
package cart

import (
	"cafe-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

type Draft struct {
	Items []domain.DraftItem `json:"items"`
}

// Apply merges delta units of a product into the draft and returns the new
// draft. The receiver is never modified. A line that reaches zero is
// removed; a negative delta for an absent product changes nothing. Lines
// saturate at domain.MaxLineQuantity; use Check to reject such deltas first.
func (d Draft) Apply(productID int64, productName string, price decimal.Decimal, delta int) Draft {
	delta = max(-domain.MaxLineQuantity, min(delta, domain.MaxLineQuantity))
	out := Draft{Items: make([]domain.DraftItem, 0, len(d.Items)+1)}
	found := false
	for _, item := range d.Items {
		if item.ProductID != productID {
			out.Items = append(out.Items, item)
			continue
		}
		found = true
		item.Quantity = min(item.Quantity+delta, domain.MaxLineQuantity)
		if item.Quantity > 0 {
			out.Items = append(out.Items, item)
		}
	}
	if !found && delta > 0 {
		out.Items = append(out.Items, domain.DraftItem{
			ProductID:   productID,
			ProductName: productName,
			Price:       domain.RoundMoney(price),
			Quantity:    delta,
		})
	}
	return out
}

// Check validates adding delta units of productID against the line cap.
func (d Draft) Check(productID int64, delta int) error {
	return domain.CheckLineQuantity(d.Quantity(productID), delta)
}

func (d Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Total())
	}
	return domain.RoundMoney(total)
}

func (d Draft) IsEmpty() bool {
	return len(d.Items) == 0
}

func (d Draft) Quantity(productID int64) int {
	for _, item := range d.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}
