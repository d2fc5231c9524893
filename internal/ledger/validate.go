package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
)

const (
	MaxSourceLength = 255
	amountPlaces    = 2
	// maxAmountScale bounds the exponent accepted from input. Comparing or
	// rounding a decimal costs time proportional to its exponent.
	maxAmountScale = 12
)

// MaxAmount bounds a single transaction amount.
var MaxAmount = decimal.RequireFromString("999999999.99")

// Violation codes.
const (
	CodeRequired            = "required"
	CodeInvalid             = "invalid"
	CodeOutOfRange          = "out_of_range"
	CodeNotFound            = "not_found"
	CodeTooLong             = "too_long"
	CodeFutureDate          = "future_date"
	CodeSameAccount         = "same_account"
	CodeCurrencyMismatch    = "currency_mismatch"
	CodeNotAllowed          = "not_allowed"
	CodeInsufficientBalance = "insufficient_balance"
)

// Candidate is a transaction as submitted by a caller, before any parsing.
type Candidate struct {
	Type        Type
	Amount      string
	AccountID   string
	ToAccountID string
	Source      string
	Date        string // YYYY-MM-DD
}

// Violation is a single failed rule.
type Violation struct {
	Field   string
	Code    string
	Message string

	// Set for CodeInsufficientBalance.
	AccountID uuid.UUID
	Available *decimal.Decimal
	Requested *decimal.Decimal
}

type Result struct {
	Valid      bool
	Violations []Violation
}

func (r *Result) add(field, code, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}

	return &ValidationError{Violations: r.Violations}
}

// Validate checks c against the owner's accounts. accounts must only contain
// accounts owned by the caller; anything else is reported as not found.
// Balances are read from the accounts as given, so callers decide which
// state (current or reversed) the sufficiency check sees.
func Validate(c Candidate, accounts map[uuid.UUID]*account.Account, now time.Time) Result {
	var r Result

	if c.Type == "" {
		r.add("type", CodeRequired, "type is required")
	} else if !c.Type.Valid() {
		r.add("type", CodeInvalid, "type must be one of income, expense, transfer")
	}

	amount, amountOK := checkAmount(&r, c.Amount)
	src, srcOK := checkAccount(&r, "account_id", c.AccountID, accounts)

	var dst *account.Account

	switch {
	case c.Type == TypeTransfer:
		var dstOK bool
		dst, dstOK = checkAccount(&r, "to_account_id", c.ToAccountID, accounts)

		if srcOK && dstOK {
			switch {
			case src.ID == dst.ID:
				r.add("to_account_id", CodeSameAccount, "destination account must differ from source account")
			case src.Currency != dst.Currency:
				r.add("to_account_id", CodeCurrencyMismatch, "destination currency %s does not match source currency %s",
					dst.Currency, src.Currency)
			}
		}
	case c.Type.Valid() && strings.TrimSpace(c.ToAccountID) != "":
		r.add("to_account_id", CodeNotAllowed, "to_account_id is only allowed for transfers")
	}

	source := strings.TrimSpace(c.Source)

	switch {
	case source == "" && (c.Type == TypeIncome || c.Type == TypeExpense):
		r.add("source", CodeRequired, "source is required")
	case utf8.RuneCountInString(source) > MaxSourceLength:
		r.add("source", CodeTooLong, "source must be at most %d characters", MaxSourceLength)
	}

	checkDate(&r, c.Date, now)

	if c.Type.Debits() && amountOK && srcOK && src.Balance.LessThan(amount) {
		available := src.Balance
		r.Violations = append(r.Violations, Violation{
			Field:     "amount",
			Code:      CodeInsufficientBalance,
			Message:   fmt.Sprintf("insufficient balance (available: %s)", available.StringFixed(amountPlaces)),
			AccountID: src.ID,
			Available: &available,
			Requested: &amount,
		})
	}

	r.Valid = len(r.Violations) == 0

	return r
}

func checkAmount(r *Result, raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		r.add("amount", CodeRequired, "amount is required")
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		r.add("amount", CodeInvalid, "amount must be a number")
		return decimal.Zero, false
	}

	if !checkScale(r, "amount", amount) {
		return decimal.Zero, false
	}

	switch {
	case !amount.IsPositive():
		r.add("amount", CodeOutOfRange, "amount must be greater than zero")
	case amount.GreaterThan(MaxAmount):
		r.add("amount", CodeOutOfRange, "amount must not exceed %s", MaxAmount.StringFixed(amountPlaces))
	case !amount.Equal(amount.Round(amountPlaces)):
		r.add("amount", CodeInvalid, "amount must have at most %d decimal places", amountPlaces)
	default:
		return amount, true
	}

	return decimal.Zero, false
}

// checkScale rejects amounts whose exponent lies outside maxAmountScale
// before any arithmetic touches them.
func checkScale(r *Result, field string, amount decimal.Decimal) bool {
	switch exp := amount.Exponent(); {
	case exp < -maxAmountScale:
		r.add(field, CodeInvalid, "amount must have at most %d decimal places", amountPlaces)
	case exp > maxAmountScale:
		r.add(field, CodeOutOfRange, "amount must not exceed %s", MaxAmount.StringFixed(amountPlaces))
	default:
		return true
	}

	return false
}

func checkAccount(r *Result, field, raw string, accounts map[uuid.UUID]*account.Account) (*account.Account, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		r.add(field, CodeRequired, "%s is required", field)
		return nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		r.add(field, CodeInvalid, "%s must be a valid id", field)
		return nil, false
	}

	a, ok := accounts[id]
	if !ok {
		r.add(field, CodeNotFound, "account %s not found", id)
		return nil, false
	}

	return a, true
}

func checkDate(r *Result, raw string, now time.Time) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		r.add("date", CodeRequired, "date is required")
		return
	}

	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		r.add("date", CodeInvalid, "date must be formatted as YYYY-MM-DD")
		return
	}

	if d.After(today(now)) {
		r.add("date", CodeFutureDate, "date cannot be in the future")
	}
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// parsed holds the typed values of a candidate that passed Validate.
type parsed struct {
	amount      decimal.Decimal
	accountID   uuid.UUID
	toAccountID *uuid.UUID
	source      string
	date        time.Time
}

// parse converts a validated candidate. It must only be called after
// Validate reported the candidate valid.
func (c Candidate) parse() parsed {
	p := parsed{
		amount:    decimal.RequireFromString(strings.TrimSpace(c.Amount)),
		accountID: uuid.MustParse(strings.TrimSpace(c.AccountID)),
		source:    strings.TrimSpace(c.Source),
	}

	if c.Type == TypeTransfer {
		id := uuid.MustParse(strings.TrimSpace(c.ToAccountID))
		p.toAccountID = &id
	}

	d, _ := time.Parse(time.DateOnly, strings.TrimSpace(c.Date))
	p.date = d

	return p
}

// referencedIDs returns the parseable account ids named by the candidate.
func (c Candidate) referencedIDs() []uuid.UUID {
	var ids []uuid.UUID

	if id, err := uuid.Parse(strings.TrimSpace(c.AccountID)); err == nil {
		ids = append(ids, id)
	}

	if c.Type == TypeTransfer {
		if id, err := uuid.Parse(strings.TrimSpace(c.ToAccountID)); err == nil {
			ids = append(ids, id)
		}
	}

	return ids
}

// CandidateFrom renders a committed transaction back into candidate form.
func CandidateFrom(t *Transaction) Candidate {
	c := Candidate{
		Type:      t.Type,
		Amount:    t.Amount.StringFixed(amountPlaces),
		AccountID: t.AccountID.String(),
		Source:    t.Source,
		Date:      t.Date.Format(time.DateOnly),
	}

	if t.ToAccountID != nil {
		c.ToAccountID = t.ToAccountID.String()
	}

	return c
}
