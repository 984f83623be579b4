// Package billing reconstructs patient ledgers and page-level billing
// summaries from appointment and checkout records on every read. Nothing
// here is persisted.
package billing

import "github.com/shopspring/decimal"

// round2 rounds half away from zero to cents.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
