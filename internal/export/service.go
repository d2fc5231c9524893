// Package export renders an owner's transactions for spreadsheets and
// plain-text summaries.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

var header = []string{"date", "type", "amount", "currency", "account", "to_account", "source", "id"}

type TransactionLister interface {
	List(ctx context.Context, ownerID uuid.UUID, filter ledger.ListFilter) ([]*ledger.Transaction, error)
}

type AccountLister interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]*account.Account, error)
}

// Item is one transaction joined with the accounts it references.
type Item struct {
	Transaction *ledger.Transaction
	Account     *account.Account
	ToAccount   *account.Account
}

type Service struct {
	transactions TransactionLister
	accounts     AccountLister
}

func NewService(transactions TransactionLister, accounts AccountLister) *Service {
	return &Service{transactions: transactions, accounts: accounts}
}

// Items lists the transactions matching filter with their accounts resolved.
func (s *Service) Items(ctx context.Context, ownerID uuid.UUID, filter ledger.ListFilter) ([]Item, error) {
	txs, err := s.transactions.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	accounts, err := s.accounts.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	byID := make(map[uuid.UUID]*account.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	items := make([]Item, 0, len(txs))

	for _, t := range txs {
		item := Item{Transaction: t, Account: byID[t.AccountID]}
		if t.ToAccountID != nil {
			item.ToAccount = byID[*t.ToAccountID]
		}

		items = append(items, item)
	}

	return items, nil
}

// WriteCSV writes the matching transactions as CSV, oldest first.
func (s *Service) WriteCSV(ctx context.Context, ownerID uuid.UUID, filter ledger.ListFilter, w io.Writer) error {
	items, err := s.Items(ctx, ownerID, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, item := range items {
		t := item.Transaction

		if err := cw.Write([]string{
			t.Date.Format(time.DateOnly),
			string(t.Type),
			t.Amount.StringFixed(2),
			currency(item),
			accountName(item.Account),
			accountName(item.ToAccount),
			t.Source,
			t.ID.String(),
		}); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	return nil
}

// Summary renders one line per item, e.g.
// "* 2024-06-10 | Groceries | -$40.00 | Checking".
func Summary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		t := item.Transaction

		amount := t.Amount
		if t.Type.Debits() {
			amount = amount.Neg()
		}

		target := accountName(item.Account)
		if t.Type == ledger.TypeTransfer {
			target += " -> " + accountName(item.ToAccount)
		}

		source := t.Source
		if source == "" {
			source = string(t.Type)
		}

		fmt.Fprintf(&sb, "* %s | %s | %s | %s\n",
			t.Date.Format(time.DateOnly), source, account.FormatAmount(amount, currency(item)), target)
	}

	return sb.String()
}

func currency(item Item) string {
	if item.Account == nil {
		return ""
	}

	return item.Account.Currency
}

func accountName(a *account.Account) string {
	if a == nil {
		return ""
	}

	return a.Name
}
