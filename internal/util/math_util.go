package util

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the fixed precision of every monetary value.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Percent returns amount * percent / 100 rounded to money precision.
func Percent(amount, percent decimal.Decimal) decimal.Decimal {
	return Money(amount.Mul(percent).Div(hundred))
}

func MustMoney(s string) decimal.Decimal {
	return Money(decimal.RequireFromString(s))
}

// SplitWithdrawal takes amount from roi first and the remainder from commission.
func SplitWithdrawal(amount, roi, commission decimal.Decimal) (fromROI, fromCommission decimal.Decimal, ok bool) {
	if amount.GreaterThan(roi.Add(commission)) {
		return decimal.Zero, decimal.Zero, false
	}
	fromROI = decimal.Min(amount, roi)
	if fromROI.IsNegative() {
		fromROI = decimal.Zero
	}
	fromCommission = amount.Sub(fromROI)
	return fromROI, fromCommission, true
}
