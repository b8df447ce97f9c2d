// Package receipt renders order receipts as PDF and archives paid ones.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/ledger"

	"github.com/phpdave11/gofpdf"
)

const timeLayout = "2006-01-02 15:04"

// Render draws a single-page receipt. Unpaid orders are marked as such.
func Render(order ledger.OrderDetail, cafeName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, cafeName, "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order #%d", order.ID), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if order.TableName != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Table %s", order.TableName), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Opened: %s", formatTime(order.OpenTime)), "", 1, "C", false, 0, "")
	if order.CloseTime != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Paid: %s", formatTime(*order.CloseTime)), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range order.LineItems {
		pdf.CellFormat(120, 5, fmt.Sprintf("%dx %s", item.Quantity, item.ProductName), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, item.Total().StringFixed(domain.MoneyPlaces), "", 1, "R", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 4, fmt.Sprintf("  @ %s", item.Price.StringFixed(domain.MoneyPlaces)), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(120, 6, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, order.TotalAmount.StringFixed(domain.MoneyPlaces), "T", 1, "R", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 9)
	status := "UNPAID"
	if order.IsPaid {
		status = "PAID"
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s", status), "", 1, "L", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Filename is the download name for an order's receipt.
func Filename(orderID int64) string {
	return fmt.Sprintf("receipt-%d.pdf", orderID)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
