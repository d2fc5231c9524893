package ledger

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
)

// balances stages balance changes for the locked accounts of one unit of work.
type balances struct {
	locked  map[uuid.UUID]*account.Account
	current map[uuid.UUID]decimal.Decimal
}

func newBalances(locked map[uuid.UUID]*account.Account) *balances {
	current := make(map[uuid.UUID]decimal.Decimal, len(locked))
	for id, a := range locked {
		current[id] = a.Balance
	}

	return &balances{locked: locked, current: current}
}

func (b *balances) apply(effects []Effect) error {
	for _, e := range effects {
		bal, ok := b.current[e.AccountID]
		if !ok {
			return accountMissing(e.AccountID)
		}

		b.current[e.AccountID] = bal.Add(e.Delta)
	}

	return nil
}

// accounts returns copies of the locked accounts carrying the staged balances.
func (b *balances) accounts() map[uuid.UUID]*account.Account {
	view := make(map[uuid.UUID]*account.Account, len(b.locked))
	for id, a := range b.locked {
		c := a.Clone()
		c.Balance = b.current[id]
		view[id] = c
	}

	return view
}

// changed returns, in ascending order, the accounts whose staged balance
// differs from the locked one.
func (b *balances) changed() []uuid.UUID {
	var ids []uuid.UUID

	for id, a := range b.locked {
		if !a.Balance.Equal(b.current[id]) {
			ids = append(ids, id)
		}
	}

	slices.SortFunc(ids, compareIDs)

	return ids
}

func compareIDs(x, y uuid.UUID) int {
	return bytes.Compare(x[:], y[:])
}

// checkOverdraft rejects staged balances that went below zero and below
// where they started. Accounts that were already negative may stay so as
// long as the change does not take more out of them.
func (b *balances) checkOverdraft() error {
	var violations []Violation

	for _, id := range b.changed() {
		before := b.locked[id].Balance
		after := b.current[id]

		if !after.IsNegative() || !after.LessThan(before) {
			continue
		}

		requested := before.Sub(after)
		violations = append(violations, Violation{
			Field:     "amount",
			Code:      CodeInsufficientBalance,
			Message:   fmt.Sprintf("insufficient balance on account %s (available: %s)", id, before.StringFixed(amountPlaces)),
			AccountID: id,
			Available: &before,
			Requested: &requested,
		})
	}

	if len(violations) == 0 {
		return nil
	}

	return &ValidationError{Violations: violations}
}
