package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type represents the kind of money movement a transaction records.
type Type string

const (
	TypeIncome   Type = "income"
	TypeExpense  Type = "expense"
	TypeTransfer Type = "transfer"
)

func (t Type) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}

	return false
}

// Debits reports whether the type takes money out of AccountID.
func (t Type) Debits() bool {
	return t == TypeExpense || t == TypeTransfer
}

// Transaction is a committed entry of the log. Its Amount, Type, AccountID and
// ToAccountID always describe the delta applied to the referenced balances.
type Transaction struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Type        Type
	Amount      decimal.Decimal
	AccountID   uuid.UUID
	ToAccountID *uuid.UUID // set iff Type == TypeTransfer
	Source      string
	Date        time.Time
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Effect is a signed change to one account balance.
type Effect struct {
	AccountID uuid.UUID
	Delta     decimal.Decimal
}

// Effects returns the balance changes the transaction applies when committed.
func (t *Transaction) Effects() []Effect {
	switch t.Type {
	case TypeIncome:
		return []Effect{{AccountID: t.AccountID, Delta: t.Amount}}
	case TypeExpense:
		return []Effect{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}
	case TypeTransfer:
		effects := []Effect{{AccountID: t.AccountID, Delta: t.Amount.Neg()}}
		if t.ToAccountID != nil {
			effects = append(effects, Effect{AccountID: *t.ToAccountID, Delta: t.Amount})
		}

		return effects
	}

	return nil
}

// Reversal returns the inverse of Effects.
func (t *Transaction) Reversal() []Effect {
	effects := t.Effects()
	for i := range effects {
		effects[i].Delta = effects[i].Delta.Neg()
	}

	return effects
}

// AccountIDs returns every account the transaction touches.
func (t *Transaction) AccountIDs() []uuid.UUID {
	ids := []uuid.UUID{t.AccountID}
	if t.ToAccountID != nil {
		ids = append(ids, *t.ToAccountID)
	}

	return ids
}

func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.ToAccountID != nil {
		id := *t.ToAccountID
		c.ToAccountID = &id
	}

	if t.UpdatedAt != nil {
		ts := *t.UpdatedAt
		c.UpdatedAt = &ts
	}

	return &c
}

// ListFilter narrows ListTransactions. Nil fields are ignored.
type ListFilter struct {
	AccountID *uuid.UUID
	Type      *Type
	StartDate *time.Time
	EndDate   *time.Time
}

// Matches reports whether t satisfies the filter. It is used by stores that
// cannot push the filter down to a query.
func (f ListFilter) Matches(t *Transaction) bool {
	if f.AccountID != nil && t.AccountID != *f.AccountID && (t.ToAccountID == nil || *t.ToAccountID != *f.AccountID) {
		return false
	}

	if f.Type != nil && t.Type != *f.Type {
		return false
	}

	if f.StartDate != nil && t.Date.Before(*f.StartDate) {
		return false
	}

	if f.EndDate != nil && t.Date.After(*f.EndDate) {
		return false
	}

	return true
}
