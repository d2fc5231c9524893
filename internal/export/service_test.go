package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type stubTransactions struct {
	txs    []*ledger.Transaction
	err    error
	filter ledger.ListFilter
}

func (s *stubTransactions) List(_ context.Context, _ uuid.UUID, filter ledger.ListFilter) ([]*ledger.Transaction, error) {
	s.filter = filter
	return s.txs, s.err
}

type stubAccounts struct {
	accounts []*account.Account
}

func (s *stubAccounts) List(context.Context, uuid.UUID) ([]*account.Account, error) {
	return s.accounts, nil
}

func fixture() (*stubTransactions, *stubAccounts) {
	checking := &account.Account{ID: uuid.New(), Name: "Checking", Currency: "USD"}
	savings := &account.Account{ID: uuid.New(), Name: "Savings, joint", Currency: "USD"}

	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	txs := []*ledger.Transaction{
		{
			ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Type:      ledger.TypeExpense,
			Amount:    decimal.RequireFromString("40"),
			AccountID: checking.ID,
			Source:    "Groceries",
			Date:      date,
		},
		{
			ID:          uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Type:        ledger.TypeTransfer,
			Amount:      decimal.RequireFromString("1250.5"),
			AccountID:   checking.ID,
			ToAccountID: &savings.ID,
			Date:        date.AddDate(0, 0, 1),
		},
	}

	return &stubTransactions{txs: txs}, &stubAccounts{accounts: []*account.Account{checking, savings}}
}

func TestService_WriteCSV(t *testing.T) {
	txs, accounts := fixture()
	svc := NewService(txs, accounts)

	filter := ledger.ListFilter{Type: new(ledger.TypeExpense)}

	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(context.Background(), uuid.New(), filter, &buf))

	assert.Equal(t, filter, txs.filter)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"date", "type", "amount", "currency", "account", "to_account", "source", "id"}, records[0])
	assert.Equal(t, []string{
		"2024-06-10", "expense", "40.00", "USD", "Checking", "", "Groceries", "11111111-1111-1111-1111-111111111111",
	}, records[1])
	assert.Equal(t, []string{
		"2024-06-11", "transfer", "1250.50", "USD", "Checking", "Savings, joint", "", "22222222-2222-2222-2222-222222222222",
	}, records[2])
}

func TestService_WriteCSV_ListError(t *testing.T) {
	txs, accounts := fixture()
	txs.err = errors.New("db down")

	var buf bytes.Buffer

	err := NewService(txs, accounts).WriteCSV(context.Background(), uuid.New(), ledger.ListFilter{}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing transactions")
	assert.Zero(t, buf.Len())
}

func TestSummary(t *testing.T) {
	txs, accounts := fixture()

	items, err := NewService(txs, accounts).Items(context.Background(), uuid.New(), ledger.ListFilter{})
	require.NoError(t, err)

	want := "* 2024-06-10 | Groceries | -$40.00 | Checking\n" +
		"* 2024-06-11 | transfer | -$1,250.50 | Checking -> Savings, joint\n"

	assert.Equal(t, want, Summary(items))
}
