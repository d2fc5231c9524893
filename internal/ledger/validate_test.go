package ledger_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

func TestValidate(t *testing.T) {
	checking := &account.Account{ID: uuid.New(), Currency: "EUR", Balance: decimal.RequireFromString("100.00")}
	savings := &account.Account{ID: uuid.New(), Currency: "EUR", Balance: decimal.Zero}
	dollars := &account.Account{ID: uuid.New(), Currency: "USD", Balance: decimal.Zero}

	accounts := map[uuid.UUID]*account.Account{
		checking.ID: checking,
		savings.ID:  savings,
		dollars.ID:  dollars,
	}

	type testCase struct {
		name      string
		candidate func() ledger.Candidate
		wantField string
		wantCode  string
	}

	tests := []testCase{
		{
			name:      "MissingType",
			candidate: func() ledger.Candidate { c := expense(checking.ID, "1.00"); c.Type = ""; return c },
			wantField: "type",
			wantCode:  ledger.CodeRequired,
		},
		{
			name:      "UnknownType",
			candidate: func() ledger.Candidate { c := expense(checking.ID, "1.00"); c.Type = "refund"; return c },
			wantField: "type",
			wantCode:  ledger.CodeInvalid,
		},
		{
			name:      "MissingAmount",
			candidate: func() ledger.Candidate { return expense(checking.ID, " ") },
			wantField: "amount",
			wantCode:  ledger.CodeRequired,
		},
		{
			name:      "NonNumericAmount",
			candidate: func() ledger.Candidate { return expense(checking.ID, "ten") },
			wantField: "amount",
			wantCode:  ledger.CodeInvalid,
		},
		{
			name:      "ZeroAmount",
			candidate: func() ledger.Candidate { return income(checking.ID, "0") },
			wantField: "amount",
			wantCode:  ledger.CodeOutOfRange,
		},
		{
			name:      "NegativeAmount",
			candidate: func() ledger.Candidate { return income(checking.ID, "-5.00") },
			wantField: "amount",
			wantCode:  ledger.CodeOutOfRange,
		},
		{
			name:      "AmountTooLarge",
			candidate: func() ledger.Candidate { return income(checking.ID, "1000000000.00") },
			wantField: "amount",
			wantCode:  ledger.CodeOutOfRange,
		},
		{
			name:      "TooManyDecimals",
			candidate: func() ledger.Candidate { return income(checking.ID, "1.005") },
			wantField: "amount",
			wantCode:  ledger.CodeInvalid,
		},
		{
			name:      "TinyExponent",
			candidate: func() ledger.Candidate { return income(checking.ID, "1e-20000000") },
			wantField: "amount",
			wantCode:  ledger.CodeInvalid,
		},
		{
			name:      "HugeExponent",
			candidate: func() ledger.Candidate { return income(checking.ID, "1e20000000") },
			wantField: "amount",
			wantCode:  ledger.CodeOutOfRange,
		},
		{
			name: "MalformedAccountID",
			candidate: func() ledger.Candidate {
				c := income(checking.ID, "1.00")
				c.AccountID = "not-a-uuid"
				return c
			},
			wantField: "account_id",
			wantCode:  ledger.CodeInvalid,
		},
		{
			name:      "UnknownAccount",
			candidate: func() ledger.Candidate { return income(uuid.New(), "1.00") },
			wantField: "account_id",
			wantCode:  ledger.CodeNotFound,
		},
		{
			name:      "TransferWithoutDestination",
			candidate: func() ledger.Candidate { c := transfer(checking.ID, savings.ID, "1.00"); c.ToAccountID = ""; return c },
			wantField: "to_account_id",
			wantCode:  ledger.CodeRequired,
		},
		{
			name:      "TransferToSelf",
			candidate: func() ledger.Candidate { return transfer(checking.ID, checking.ID, "1.00") },
			wantField: "to_account_id",
			wantCode:  ledger.CodeSameAccount,
		},
		{
			name:      "TransferAcrossCurrencies",
			candidate: func() ledger.Candidate { return transfer(checking.ID, dollars.ID, "1.00") },
			wantField: "to_account_id",
			wantCode:  ledger.CodeCurrencyMismatch,
		},
		{
			name: "DestinationOnExpense",
			candidate: func() ledger.Candidate {
				c := expense(checking.ID, "1.00")
				c.ToAccountID = savings.ID.String()
				return c
			},
			wantField: "to_account_id",
			wantCode:  ledger.CodeNotAllowed,
		},
		{
			name:      "MissingSource",
			candidate: func() ledger.Candidate { c := expense(checking.ID, "1.00"); c.Source = "  "; return c },
			wantField: "source",
			wantCode:  ledger.CodeRequired,
		},
		{
			name: "SourceTooLong",
			candidate: func() ledger.Candidate {
				c := expense(checking.ID, "1.00")
				c.Source = strings.Repeat("é", ledger.MaxSourceLength+1)
				return c
			},
			wantField: "source",
			wantCode:  ledger.CodeTooLong,
		},
		{
			name:      "MissingDate",
			candidate: func() ledger.Candidate { c := expense(checking.ID, "1.00"); c.Date = ""; return c },
			wantField: "date",
			wantCode:  ledger.CodeRequired,
		},
		{
			name:      "BadDateFormat",
			candidate: func() ledger.Candidate { c := expense(checking.ID, "1.00"); c.Date = "15/06/2024"; return c },
			wantField: "date",
			wantCode:  ledger.CodeInvalid,
		},
		{
			name:      "FutureDate",
			candidate: func() ledger.Candidate { c := expense(checking.ID, "1.00"); c.Date = "2024-06-16"; return c },
			wantField: "date",
			wantCode:  ledger.CodeFutureDate,
		},
		{
			name:      "Overdraw",
			candidate: func() ledger.Candidate { return expense(checking.ID, "100.01") },
			wantField: "amount",
			wantCode:  ledger.CodeInsufficientBalance,
		},
		{
			name:      "TransferOverdraw",
			candidate: func() ledger.Candidate { return transfer(savings.ID, checking.ID, "0.01") },
			wantField: "amount",
			wantCode:  ledger.CodeInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ledger.Validate(tt.candidate(), accounts, fixedNow)

			require.False(t, res.Valid)
			require.Len(t, res.Violations, 1, "violations: %+v", res.Violations)
			assert.Equal(t, tt.wantField, res.Violations[0].Field)
			assert.Equal(t, tt.wantCode, res.Violations[0].Code)
			require.ErrorIs(t, res.Err(), ledger.ErrValidationFailed)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	checking := &account.Account{ID: uuid.New(), Currency: "EUR", Balance: decimal.RequireFromString("100.00")}
	savings := &account.Account{ID: uuid.New(), Currency: "EUR", Balance: decimal.Zero}

	accounts := map[uuid.UUID]*account.Account{checking.ID: checking, savings.ID: savings}

	tests := []struct {
		name      string
		candidate ledger.Candidate
	}{
		{name: "ExactBalance", candidate: expense(checking.ID, "100.00")},
		{name: "IncomeOnEmptyAccount", candidate: income(savings.ID, "0.01")},
		{name: "TransferWithoutSource", candidate: transfer(checking.ID, savings.ID, "50")},
		{name: "Today", candidate: func() ledger.Candidate { c := income(savings.ID, "5"); c.Date = "2024-06-15"; return c }()},
		{name: "MaxSourceLength", candidate: func() ledger.Candidate {
			c := expense(checking.ID, "1.00")
			c.Source = strings.Repeat("a", ledger.MaxSourceLength)
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ledger.Validate(tt.candidate, accounts, fixedNow)

			assert.True(t, res.Valid, "violations: %+v", res.Violations)
			assert.Empty(t, res.Violations)
			assert.NoError(t, res.Err())
		})
	}
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	res := ledger.Validate(ledger.Candidate{Type: ledger.TypeExpense, Date: "tomorrow"}, nil, fixedNow)

	require.False(t, res.Valid)

	fields := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		fields = append(fields, v.Field)
	}

	assert.ElementsMatch(t, []string{"amount", "account_id", "source", "date"}, fields)

	err := res.Err()
	assert.ErrorIs(t, err, ledger.ErrValidationFailed)
	assert.NotErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.NotErrorIs(t, err, ledger.ErrAccountNotFound)
}
