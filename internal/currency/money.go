package currency

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Normalize upper-cases and trims a currency code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Known reports whether code is an ISO 4217 currency.
func Known(code string) bool {
	return money.GetCurrency(Normalize(code)) != nil
}

// Format renders an amount stored in hundredths for display. Stored amounts
// always carry two decimals; currencies with other fractions are rounded.
func Format(amount int64, code string) string {
	code = Normalize(code)
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%s %s", decimal.New(amount, -2).StringFixed(2), code)
	}
	dec := decimal.New(amount, -2).Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(dec.IntPart())
}
