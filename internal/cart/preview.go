package cart

import (
	"cafe-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

type LineSource string

const (
	SourceSent  LineSource = "sent"
	SourceDraft LineSource = "draft"
)

type PreviewLine struct {
	Source      LineSource      `json:"source"`
	LineItemID  *int64          `json:"lineItemId,omitempty"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type Preview struct {
	TableID    *int64          `json:"tableId"`
	TableName  string          `json:"tableName"`
	Lines      []PreviewLine   `json:"lines"`
	SentTotal  decimal.Decimal `json:"sentTotal"`
	DraftTotal decimal.Decimal `json:"draftTotal"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// BuildPreview lists the order's committed lines followed by the draft. order
// is nil when the session has no table or the table has no open order.
func BuildPreview(table *domain.Table, order *domain.Order, draft Draft) Preview {
	p := Preview{
		Lines:      make([]PreviewLine, 0),
		SentTotal:  decimal.Zero,
		DraftTotal: draft.Total(),
	}
	if table != nil {
		id := table.ID
		p.TableID = &id
		p.TableName = table.Name
	}
	if order != nil {
		for _, li := range order.LineItems {
			id := li.ID
			p.Lines = append(p.Lines, PreviewLine{
				Source:      SourceSent,
				LineItemID:  &id,
				ProductID:   li.ProductID,
				ProductName: li.ProductName,
				Quantity:    li.Quantity,
				Price:       li.Price,
				Total:       li.Total(),
			})
		}
		p.SentTotal = domain.SumLineItems(order.LineItems)
	}
	for _, item := range draft.Items {
		p.Lines = append(p.Lines, PreviewLine{
			Source:      SourceDraft,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Total:       item.Total(),
		})
	}
	p.GrandTotal = p.SentTotal.Add(p.DraftTotal)
	return p
}
