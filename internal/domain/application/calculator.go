package application

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TotalInterest computes the flat interest over the whole term: P * R / 100.
func TotalInterest(principal, ratePercent decimal.Decimal) decimal.Decimal {
	return principal.Mul(ratePercent).Div(hundred)
}

// MonthlyInstallment derives the cached per-month amount:
// round2((P + total interest) / N), half-up.
func MonthlyInstallment(principal, ratePercent decimal.Decimal, periods int) decimal.Decimal {
	total := principal.Add(TotalInterest(principal, ratePercent))
	return round2(total.Div(decimal.NewFromInt(int64(periods))))
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
