package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

var (
	_ ledger.Repository   = (*Store)(nil)
	_ account.Repository  = (*Store)(nil)
	_ outbox.Repository   = (*Store)(nil)
	_ matching.Repository = (*Store)(nil)
	_ ledger.Tx           = (*Tx)(nil)
)

func newAccount(t *testing.T, s *Store, owner uuid.UUID, balance string) *account.Account {
	t.Helper()

	a := &account.Account{
		OwnerID:        owner,
		Name:           "Checking",
		Currency:       "EUR",
		OpeningBalance: decimal.RequireFromString(balance),
		Balance:        decimal.RequireFromString(balance),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))

	return a
}

func TestStore_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	a := newAccount(t, s, owner, "10.00")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.SetBalance(ctx, a.ID, decimal.NewFromInt(99))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	got, err := s.GetAccount(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Balance.StringFixed(2))
	assert.Zero(t, got.Version)
}

func TestStore_CommitPublishes(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	a := newAccount(t, s, owner, "10.00")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	updated, err := tx.SetBalance(ctx, a.ID, decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	require.NoError(t, tx.Commit())

	got, err := s.GetAccount(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "99.00", got.Balance.StringFixed(2))

	_, err = tx.SetBalance(ctx, a.ID, decimal.Zero)
	require.ErrorIs(t, err, errTxDone)
	require.ErrorIs(t, tx.Commit(), errTxDone)
	assert.NoError(t, tx.Rollback())
}

func TestStore_BeginWaitsForUnitOfWork(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.Begin(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = s.Begin(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Rollback())

	second, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Rollback())
}

func TestStore_LockAccountsScopesToOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	mine := newAccount(t, s, owner, "1.00")
	theirs := newAccount(t, s, uuid.New(), "1.00")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	locked, err := tx.LockAccounts(ctx, owner, []uuid.UUID{mine.ID, theirs.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, locked, 1)
	assert.Contains(t, locked, mine.ID)
}

func TestStore_InsertTransactionChecksAccounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	a := newAccount(t, s, owner, "1.00")
	foreign := newAccount(t, s, uuid.New(), "1.00")

	tests := []struct {
		name    string
		tr      *ledger.Transaction
		wantErr error
	}{
		{
			name: "Valid",
			tr:   &ledger.Transaction{OwnerID: owner, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1), AccountID: a.ID},
		},
		{
			name:    "UnknownAccount",
			tr:      &ledger.Transaction{OwnerID: owner, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1), AccountID: uuid.New()},
			wantErr: ledger.ErrAccountNotFound,
		},
		{
			name: "ForeignDestination",
			tr: &ledger.Transaction{
				OwnerID: owner, Type: ledger.TypeTransfer, Amount: decimal.NewFromInt(1),
				AccountID: a.ID, ToAccountID: &foreign.ID,
			},
			wantErr: ledger.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()

			err = tx.InsertTransaction(ctx, tt.tr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, tt.tr.ID)
		})
	}
}

func TestStore_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	used := newAccount(t, s, owner, "1.00")
	unused := newAccount(t, s, owner, "1.00")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertTransaction(ctx, &ledger.Transaction{
		OwnerID: owner, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1), AccountID: used.ID,
	}))
	require.NoError(t, tx.Commit())

	assert.ErrorIs(t, s.DeleteAccount(ctx, owner, used.ID), account.ErrInUse)
	assert.ErrorIs(t, s.DeleteAccount(ctx, uuid.New(), unused.ID), account.ErrNotFound)
	require.NoError(t, s.DeleteAccount(ctx, owner, unused.ID))
	assert.ErrorIs(t, s.DeleteAccount(ctx, owner, unused.ID), account.ErrNotFound)
}

func TestStore_ListTransactionsOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	a := newAccount(t, s, owner, "0.00")

	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	for _, tr := range []*ledger.Transaction{
		{OwnerID: owner, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1), AccountID: a.ID, Source: "late", Date: day(3)},
		{OwnerID: owner, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1), AccountID: a.ID, Source: "first", Date: day(1)},
		{OwnerID: owner, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1), AccountID: a.ID, Source: "second", Date: day(1)},
	} {
		require.NoError(t, tx.InsertTransaction(ctx, tr))
	}

	require.NoError(t, tx.Commit())

	txs, err := s.ListTransactions(ctx, owner, ledger.ListFilter{})
	require.NoError(t, err)

	sources := make([]string, len(txs))
	for i, tr := range txs {
		sources[i] = tr.Source
	}

	assert.Equal(t, []string{"first", "second", "late"}, sources)

	other, err := s.ListTransactions(ctx, uuid.New(), ledger.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_OutboxLease(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	owner := uuid.New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	for range 3 {
		e, err := outbox.NewEvent(owner, outbox.EventTransactionCreated, uuid.New(), map[string]string{"k": "v"})
		require.NoError(t, err)
		require.NoError(t, tx.AppendEvent(ctx, e))
	}

	require.NoError(t, tx.Commit())

	claimed, err := s.Claim(ctx, 2, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	rest, err := s.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	none, err := s.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.MarkPublished(ctx, claimed[0].ID))
	require.NoError(t, s.MarkFailed(ctx, claimed[1].ID, "broker down", 2))

	retry, err := s.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, claimed[1].ID, retry[0].ID)
	assert.Equal(t, 1, retry[0].Attempts)

	require.NoError(t, s.MarkFailed(ctx, retry[0].ID, "broker down", 2))

	// The unacknowledged claim comes back once its lease runs out.
	now = now.Add(2 * time.Minute)

	expired, err := s.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, rest[0].ID, expired[0].ID)

	statuses := map[uuid.UUID]outbox.Status{}
	for _, e := range s.Events() {
		statuses[e.ID] = e.Status
	}

	assert.Equal(t, outbox.StatusPublished, statuses[claimed[0].ID])
	assert.Equal(t, outbox.StatusFailed, statuses[claimed[1].ID])
	assert.Equal(t, outbox.StatusProcessing, statuses[rest[0].ID])

	assert.ErrorIs(t, s.MarkPublished(ctx, uuid.New()), outbox.ErrNotFound)
}

func TestStore_FindMatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()

	require.NoError(t, s.CreateMapping(ctx, owner, "UBER", "Uber"))
	require.NoError(t, s.CreateMapping(ctx, owner, "UBER EATS", "Food delivery"))
	require.NoError(t, s.CreateMapping(ctx, uuid.New(), "CONTINENTE", "Groceries"))

	tests := []struct {
		name  string
		owner uuid.UUID
		raw   string
		want  string
	}{
		{name: "LongestWins", owner: owner, raw: "COMPRA UBER EATS LISBOA", want: "Food delivery"},
		{name: "CaseInsensitive", owner: owner, raw: "uber trip", want: "Uber"},
		{name: "NoMatch", owner: owner, raw: "PINGO DOCE", want: ""},
		{name: "OtherOwnerMapping", owner: owner, raw: "CONTINENTE", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindMatch(ctx, tt.owner, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, s.CreateMapping(ctx, owner, "UBER", "Rides"))

	got, err := s.FindMatch(ctx, owner, "UBER TRIP")
	require.NoError(t, err)
	assert.Equal(t, "Rides", got)
}
