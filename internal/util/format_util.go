package util

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with thousands separators, e.g. 12,345.60.
func FormatMoney(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(MoneyPlaces).InexactFloat64())
}
