package postgres

import "github.com/shopspring/decimal"

// Monetary values are stored as BIGINT minor units (cents) to keep
// arithmetic exact in SQL. Domain types carry decimals.

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
