package view

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

// FormatAmount renders amount in the account's currency, negative for
// money leaving the account.
func FormatAmount(t *ledger.Transaction, a *account.Account) string {
	amount := t.Amount
	if t.Type.Debits() {
		amount = amount.Neg()
	}

	return formatMoney(amount, a)
}

func formatMoney(amount decimal.Decimal, a *account.Account) string {
	if a == nil {
		return amount.StringFixed(2)
	}

	return account.FormatAmount(amount, a.Currency)
}

func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// accountIndex maps ids to accounts for display lookups.
func accountIndex(accounts []*account.Account) map[uuid.UUID]*account.Account {
	idx := make(map[uuid.UUID]*account.Account, len(accounts))
	for _, a := range accounts {
		idx[a.ID] = a
	}

	return idx
}

func accountName(idx map[uuid.UUID]*account.Account, id *uuid.UUID) string {
	if id == nil {
		return ""
	}

	if a, ok := idx[*id]; ok {
		return a.Name
	}

	return id.String()[:8]
}
