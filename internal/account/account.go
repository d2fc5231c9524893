package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("account not found")
	ErrInUse    = errors.New("account is referenced by transactions")
	ErrInvalid  = errors.New("invalid account")
)

// Account is an owner-scoped monetary bucket. Balance is a cache of
// OpeningBalance plus the effects of every live transaction referencing the
// account, and is only written by the ledger.
type Account struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	Currency       string
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Clone returns a copy that can be mutated without touching the receiver.
func (a *Account) Clone() *Account {
	c := *a
	if a.UpdatedAt != nil {
		t := *a.UpdatedAt
		c.UpdatedAt = &t
	}

	return &c
}
