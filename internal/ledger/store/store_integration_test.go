//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrJamesThe3rd/tally/internal/account"
	accountStore "github.com/MrJamesThe3rd/tally/internal/account/store"
	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/ledger/store"
	matchingStore "github.com/MrJamesThe3rd/tally/internal/matching/store"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
	outboxStore "github.com/MrJamesThe3rd/tally/internal/outbox/store"
)

func setupPostgres(t *testing.T) (string, *sql.DB) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tally"),
		tcpostgres.WithUsername("tally"),
		tcpostgres.WithPassword("tally"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(connStr))

	db, err := database.New(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return connStr, db
}

type pgFixture struct {
	accounts *account.Service
	ledger   *ledger.Service
	outbox   *outboxStore.Store
	owner    uuid.UUID
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()

	_, db := setupPostgres(t)

	return &pgFixture{
		accounts: account.NewService(accountStore.New(db)),
		ledger:   ledger.NewService(store.New(db)),
		outbox:   outboxStore.New(db),
		owner:    uuid.New(),
	}
}

func (f *pgFixture) account(t *testing.T, name, opening string) *account.Account {
	t.Helper()

	a, err := f.accounts.Create(context.Background(), account.CreateParams{
		OwnerID:        f.owner,
		Name:           name,
		Currency:       "EUR",
		OpeningBalance: decimal.RequireFromString(opening),
	})
	require.NoError(t, err)

	return a
}

func (f *pgFixture) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()

	a, err := f.accounts.Get(context.Background(), f.owner, id)
	require.NoError(t, err)

	return a.Balance.StringFixed(2)
}

func TestIntegration_TransactionLifecycle(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	checking := f.account(t, "Checking", "100.00")
	savings := f.account(t, "Savings", "0.00")

	expense, err := f.ledger.Create(ctx, f.owner, ledger.Candidate{
		Type: ledger.TypeExpense, Amount: "40", AccountID: checking.ID.String(),
		Source: "Groceries", Date: "2024-06-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "60.00", f.balance(t, checking.ID))

	transfer, err := f.ledger.Create(ctx, f.owner, ledger.Candidate{
		Type: ledger.TypeTransfer, Amount: "25.50", AccountID: checking.ID.String(),
		ToAccountID: savings.ID.String(), Date: "2024-06-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "34.50", f.balance(t, checking.ID))
	assert.Equal(t, "25.50", f.balance(t, savings.ID))

	_, err = f.ledger.Update(ctx, f.owner, expense.ID, ledger.Patch{Amount: new("10")})
	require.NoError(t, err)
	assert.Equal(t, "64.50", f.balance(t, checking.ID))

	listed, err := f.ledger.List(ctx, f.owner, ledger.ListFilter{AccountID: &savings.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, transfer.ID, listed[0].ID)

	require.NoError(t, f.ledger.Delete(ctx, f.owner, transfer.ID))
	assert.Equal(t, "90.00", f.balance(t, checking.ID))
	assert.Equal(t, "0.00", f.balance(t, savings.ID))

	_, err = f.ledger.Get(ctx, f.owner, transfer.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.ledger.Get(ctx, uuid.New(), expense.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	assert.ErrorIs(t, f.accounts.Delete(ctx, f.owner, checking.ID), account.ErrInUse)
	require.NoError(t, f.accounts.Delete(ctx, f.owner, savings.ID))

	rec, err := f.ledger.Reconcile(ctx, f.owner, checking.ID, false)
	require.NoError(t, err)
	assert.NoError(t, rec.Err())
	assert.True(t, rec.Drift.IsZero())

	events, err := f.outbox.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 4)

	types := make([]outbox.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}

	assert.ElementsMatch(t, []outbox.EventType{
		outbox.EventTransactionCreated,
		outbox.EventTransactionCreated,
		outbox.EventTransactionUpdated,
		outbox.EventTransactionDeleted,
	}, types)

	require.NoError(t, f.outbox.MarkPublished(ctx, events[0].ID))
	assert.ErrorIs(t, f.outbox.MarkPublished(ctx, uuid.New()), outbox.ErrNotFound)
}

func TestIntegration_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	a := f.account(t, "Wallet", "50.00")

	const attempts = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for range attempts {
		wg.Go(func() {
			_, err := f.ledger.Create(ctx, f.owner, ledger.Candidate{
				Type: ledger.TypeExpense, Amount: "10", AccountID: a.ID.String(), Source: "Coffee", Date: "2024-06-01",
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ledger.ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, attempts-5, rejected)
	assert.Equal(t, "0.00", f.balance(t, a.ID))

	rec, err := f.ledger.Reconcile(ctx, f.owner, a.ID, false)
	require.NoError(t, err)
	assert.NoError(t, rec.Err())
}

func TestIntegration_ImportBatchAndMatching(t *testing.T) {
	connStr, db := setupPostgres(t)
	ctx := context.Background()
	owner := uuid.New()

	accounts := account.NewService(accountStore.New(db))
	svc := ledger.NewService(store.New(db))
	mappings := matchingStore.New(db)

	a, err := accounts.Create(ctx, account.CreateParams{
		OwnerID: owner, Name: "Checking", Currency: "EUR", OpeningBalance: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.NoError(t, mappings.CreateMapping(ctx, owner, "UBER", "Uber"))
	require.NoError(t, mappings.CreateMapping(ctx, owner, "UBER EATS", "Food delivery"))

	got, err := mappings.FindMatch(ctx, owner, "compra uber eats lisboa")
	require.NoError(t, err)
	assert.Equal(t, "Food delivery", got)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []ledger.ImportRow{
		{Date: date, Type: ledger.TypeExpense, Amount: decimal.RequireFromString("12.30"), RawSource: "UBER TRIP"},
		{Date: date, Type: ledger.TypeIncome, Amount: decimal.NewFromInt(1000), RawSource: "SALARIO"},
	}

	first, err := svc.ImportBatch(ctx, owner, a.ID, rows)
	require.NoError(t, err)
	assert.Len(t, first.Imported, 2)
	assert.Empty(t, first.Conflicts)

	again, err := svc.ImportBatch(ctx, owner, a.ID, rows)
	require.NoError(t, err)
	assert.Empty(t, again.Imported)
	assert.Len(t, again.Conflicts, 2)

	current, err := accounts.Get(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "1087.70", current.Balance.StringFixed(2))

	// Rolling every migration back and forward again leaves a usable schema.
	db.Close()
	require.NoError(t, database.Rollback(connStr, 4))
	require.NoError(t, database.Migrate(connStr))
}
