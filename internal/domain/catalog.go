package domain

import "github.com/shopspring/decimal"

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   *int64          `json:"categoryId,omitempty"`
	CategoryName string          `json:"categoryName,omitempty"`
	Description  string          `json:"description,omitempty"`
	IsActive     bool            `json:"isActive"`
}
