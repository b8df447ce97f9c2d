package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the scale persisted for prices and totals (numeric(18,2)).
const MoneyPlaces = 2

func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

// LineTotal is quantity x unit price, rounded to money scale.
func LineTotal(quantity int, price decimal.Decimal) decimal.Decimal {
	return RoundMoney(price.Mul(decimal.NewFromInt(int64(quantity))))
}
