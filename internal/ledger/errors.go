package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("transaction not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrValidationFailed    = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceDrift        = errors.New("cached balance differs from transaction log")
	// ErrStore wraps any failure returned by the backing store.
	ErrStore = errors.New("ledger store failure")
)

// ValidationError carries every violation found for a candidate.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Field + ": " + v.Message
	}

	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Unwrap lets callers match ErrValidationFailed, ErrAccountNotFound and
// *InsufficientBalanceError with errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := []error{ErrValidationFailed}

	accountMissing := false

	for _, v := range e.Violations {
		switch v.Code {
		case CodeNotFound:
			if !accountMissing {
				errs = append(errs, ErrAccountNotFound)
				accountMissing = true
			}
		case CodeInsufficientBalance:
			ibe := &InsufficientBalanceError{AccountID: v.AccountID}
			if v.Available != nil {
				ibe.Available = *v.Available
			}

			if v.Requested != nil {
				ibe.Requested = *v.Requested
			}

			errs = append(errs, ibe)
		}
	}

	return errs
}

// InsufficientBalanceError reports a debit larger than the available balance.
type InsufficientBalanceError struct {
	AccountID uuid.UUID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %s (available: %s, requested: %s)",
		e.AccountID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrStore) {
		return err
	}

	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
