package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

func row(date string, typ ledger.Type, amount, raw string) ledger.ImportRow {
	d, _ := time.Parse(time.DateOnly, date)

	return ledger.ImportRow{
		Date:      d,
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
		RawSource: raw,
	}
}

func TestService_ImportBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("CommitsWhenNoConflicts", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "10.00")

		res, err := f.ledger.ImportBatch(ctx, f.owner, a.ID, []ledger.ImportRow{
			row("2024-06-01", ledger.TypeIncome, "100.00", "SALARY JUNE"),
			row("2024-06-02", ledger.TypeExpense, "30.50", "PINGO DOCE"),
		})
		require.NoError(t, err)

		require.Len(t, res.Imported, 2)
		assert.Empty(t, res.Conflicts)
		assert.Equal(t, "SALARY JUNE", res.Imported[0].Source)
		assert.Equal(t, "79.50", f.balance(t, a.ID))

		var created int

		for _, e := range f.store.Events() {
			if e.Type == outbox.EventTransactionCreated {
				created++
			}
		}

		assert.Equal(t, 2, created)
	})

	t.Run("ReportsConflictsWithoutWriting", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "100.00")

		existing, err := f.ledger.Create(ctx, f.owner, expense(a.ID, "40.00"))
		require.NoError(t, err)

		dup := row("2024-06-10", ledger.TypeExpense, "40", "CONTINENTE 1234")
		dup.Source = "Groceries"

		fresh := row("2024-06-11", ledger.TypeExpense, "5.00", "CAFE")

		res, err := f.ledger.ImportBatch(ctx, f.owner, a.ID, []ledger.ImportRow{dup, fresh})
		require.NoError(t, err)

		assert.Empty(t, res.Imported)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, existing.ID, res.Conflicts[0].Existing.ID)
		assert.Equal(t, "CONTINENTE 1234", res.Conflicts[0].Incoming.RawSource)
		require.Len(t, res.New, 1)
		assert.Equal(t, "CAFE", res.New[0].RawSource)

		assert.Equal(t, "60.00", f.balance(t, a.ID))

		txs, err := f.ledger.List(ctx, f.owner, ledger.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("MatchesOnRawSource", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "100.00")

		c := expense(a.ID, "12.00")
		c.Source = "UBER TRIP"
		_, err := f.ledger.Create(ctx, f.owner, c)
		require.NoError(t, err)

		dup := row("2024-06-10", ledger.TypeExpense, "12.00", "UBER TRIP")
		dup.Source = "Transport"

		res, err := f.ledger.ImportBatch(ctx, f.owner, a.ID, []ledger.ImportRow{dup})
		require.NoError(t, err)
		assert.Len(t, res.Conflicts, 1)
	})

	t.Run("DifferentTypeIsNotDuplicate", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "100.00")

		_, err := f.ledger.Create(ctx, f.owner, expense(a.ID, "40.00"))
		require.NoError(t, err)

		refund := row("2024-06-10", ledger.TypeIncome, "40.00", "Groceries")

		res, err := f.ledger.ImportBatch(ctx, f.owner, a.ID, []ledger.ImportRow{refund})
		require.NoError(t, err)
		assert.Empty(t, res.Conflicts)
		assert.Len(t, res.Imported, 1)
		assert.Equal(t, "100.00", f.balance(t, a.ID))
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.ledger.ImportBatch(ctx, f.owner, uuid.New(), []ledger.ImportRow{
			row("2024-06-01", ledger.TypeIncome, "1.00", "X"),
		})
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("Empty", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "0.00")

		res, err := f.ledger.ImportBatch(ctx, f.owner, a.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Imported)
		assert.Empty(t, res.Conflicts)
	})
}

func TestService_CreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidatesAgainstRunningBalance", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "0.00")

		txs, err := f.ledger.CreateBatch(ctx, f.owner, a.ID, []ledger.ImportRow{
			row("2024-06-01", ledger.TypeIncome, "50.00", "Salary"),
			row("2024-06-02", ledger.TypeExpense, "50.00", "Rent"),
		})
		require.NoError(t, err)
		assert.Len(t, txs, 2)
		assert.Equal(t, "0.00", f.balance(t, a.ID))
	})

	t.Run("NewestFirstStatement", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "0.00")

		txs, err := f.ledger.CreateBatch(ctx, f.owner, a.ID, []ledger.ImportRow{
			row("2024-06-02", ledger.TypeExpense, "50.00", "Rent"),
			row("2024-06-01", ledger.TypeIncome, "80.00", "Salary"),
		})
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "Salary", txs[0].Source)
		assert.Equal(t, "30.00", f.balance(t, a.ID))
	})

	t.Run("RejectsExtremeExponentBeforeLocking", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "20.00")

		bad := row("2024-06-02", ledger.TypeIncome, "1.00", "Odd")
		bad.Amount = decimal.New(1, -20000000)

		// Holding the only unit of work proves the batch never waits for a lock.
		held, err := f.store.Begin(ctx)
		require.NoError(t, err)
		defer held.Rollback()

		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		for _, call := range []func() error{
			func() error {
				_, err := f.ledger.CreateBatch(callCtx, f.owner, a.ID, []ledger.ImportRow{row("2024-06-01", ledger.TypeIncome, "1.00", "Ok"), bad})
				return err
			},
			func() error {
				_, err := f.ledger.ImportBatch(callCtx, f.owner, a.ID, []ledger.ImportRow{row("2024-06-01", ledger.TypeIncome, "1.00", "Ok"), bad})
				return err
			},
		} {
			err := call()
			require.ErrorIs(t, err, ledger.ErrValidationFailed)

			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Violations, 1)
			assert.Equal(t, "rows[1].amount", verr.Violations[0].Field)
			assert.Equal(t, ledger.CodeInvalid, verr.Violations[0].Code)
		}
	})

	t.Run("OneBadRowFailsTheBatch", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "20.00")

		_, err := f.ledger.CreateBatch(ctx, f.owner, a.ID, []ledger.ImportRow{
			row("2024-06-01", ledger.TypeExpense, "5.00", "Coffee"),
			row("2024-06-02", ledger.TypeExpense, "30.00", "Dinner"),
			row("2030-01-01", ledger.TypeIncome, "1.00", "Later"),
		})
		require.ErrorIs(t, err, ledger.ErrValidationFailed)
		require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

		var verr *ledger.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Violations, 2)
		assert.Equal(t, "rows[1].amount", verr.Violations[0].Field)
		assert.Equal(t, "rows[2].date", verr.Violations[1].Field)

		assert.Equal(t, "20.00", f.balance(t, a.ID))
		assert.Empty(t, f.store.Events())
	})

	t.Run("KeepsDuplicates", func(t *testing.T) {
		f := newFixture(t)
		a := f.account(t, "Checking", "100.00")

		_, err := f.ledger.Create(ctx, f.owner, expense(a.ID, "40.00"))
		require.NoError(t, err)

		dup := row("2024-06-10", ledger.TypeExpense, "40.00", "Groceries")

		txs, err := f.ledger.CreateBatch(ctx, f.owner, a.ID, []ledger.ImportRow{dup})
		require.NoError(t, err)
		assert.Len(t, txs, 1)
		assert.Equal(t, "20.00", f.balance(t, a.ID))
	})
}
