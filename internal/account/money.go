package account

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatAmount renders amount in the currency's own notation, e.g.
// "$1,234.56". Unknown codes fall back to the plain decimal.
func FormatAmount(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}

	minor := amount.Shift(int32(cur.Fraction)).Round(0)

	return cur.Formatter().Format(minor.IntPart())
}

// Display formats the account's balance.
func (a *Account) Display() string {
	return FormatAmount(a.Balance, a.Currency)
}
