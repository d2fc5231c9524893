package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

// ImportRow is one parsed statement line destined for a single account.
type ImportRow struct {
	Date   time.Time
	Type   Type
	Amount decimal.Decimal
	Source string
	// RawSource is the description as printed on the statement.
	RawSource string
}

type ImportResult struct {
	Imported  []*Transaction
	New       []ImportRow
	Conflicts []Conflict
}

type Conflict struct {
	Incoming ImportRow
	Existing *Transaction
}

// ImportBatch commits rows to the account unless some of them look like
// transactions already on it. In that case nothing is written and the
// result splits the rows into New and Conflicts for the caller to confirm.
func (s *Service) ImportBatch(ctx context.Context, ownerID, accountID uuid.UUID, rows []ImportRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return &ImportResult{}, nil
	}

	if err := checkRowScales(rows); err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	accounts, err := tx.LockAccounts(ctx, ownerID, []uuid.UUID{accountID})
	if err != nil {
		return nil, storeErr("lock accounts", err)
	}

	if _, ok := accounts[accountID]; !ok {
		return nil, accountMissing(accountID)
	}

	existing, err := tx.ListByAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, storeErr("list account transactions", err)
	}

	type dupKey struct {
		Date   string
		Type   Type
		Amount string
		Source string
	}

	lookup := make(map[dupKey]*Transaction, len(existing))

	for _, t := range existing {
		if t.AccountID != accountID {
			continue
		}

		lookup[dupKey{
			Date:   t.Date.Format(time.DateOnly),
			Type:   t.Type,
			Amount: t.Amount.StringFixed(amountPlaces),
			Source: t.Source,
		}] = t
	}

	var (
		newRows   []ImportRow
		conflicts []Conflict
	)

	for _, row := range rows {
		k := dupKey{
			Date:   row.Date.Format(time.DateOnly),
			Type:   row.Type,
			Amount: row.Amount.StringFixed(amountPlaces),
		}

		var found *Transaction

		for _, src := range []string{row.Source, row.RawSource} {
			k.Source = src
			if t, ok := lookup[k]; ok {
				found = t
				break
			}
		}

		if found != nil {
			conflicts = append(conflicts, Conflict{Incoming: row, Existing: found})
			continue
		}

		newRows = append(newRows, row)
	}

	if len(conflicts) > 0 {
		return &ImportResult{New: newRows, Conflicts: conflicts}, nil
	}

	txs, err := s.commitRows(ctx, tx, ownerID, accountID, accounts, newRows)
	if err != nil {
		return nil, err
	}

	return &ImportResult{Imported: txs}, nil
}

// CreateBatch commits rows without looking for duplicates. Rows are
// validated in date order against the running balance, and one invalid
// row fails the whole batch.
func (s *Service) CreateBatch(ctx context.Context, ownerID, accountID uuid.UUID, rows []ImportRow) ([]*Transaction, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if err := checkRowScales(rows); err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	accounts, err := tx.LockAccounts(ctx, ownerID, []uuid.UUID{accountID})
	if err != nil {
		return nil, storeErr("lock accounts", err)
	}

	if _, ok := accounts[accountID]; !ok {
		return nil, accountMissing(accountID)
	}

	return s.commitRows(ctx, tx, ownerID, accountID, accounts, rows)
}

// checkRowScales must run before Begin; rows are not touched by any
// arithmetic until their exponents are bounded.
func checkRowScales(rows []ImportRow) error {
	var r Result

	for i, row := range rows {
		checkScale(&r, fmt.Sprintf("rows[%d].amount", i), row.Amount)
	}

	if len(r.Violations) > 0 {
		return &ValidationError{Violations: r.Violations}
	}

	return nil
}

func (s *Service) commitRows(
	ctx context.Context,
	tx Tx,
	ownerID, accountID uuid.UUID,
	accounts map[uuid.UUID]*account.Account,
	rows []ImportRow,
) ([]*Transaction, error) {
	bal := newBalances(accounts)
	now := s.now()

	var violations []Violation

	txs := make([]*Transaction, 0, len(rows))

	// Statements often list the newest movement first; the running balance
	// is checked in date order. Violations keep the caller's row index.
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return rows[a].Date.Compare(rows[b].Date)
	})

	for _, i := range order {
		row := rows[i]

		source := row.Source
		if source == "" {
			source = row.RawSource
		}

		c := Candidate{
			Type:      row.Type,
			Amount:    row.Amount.String(),
			AccountID: accountID.String(),
			Source:    source,
			Date:      row.Date.Format(time.DateOnly),
		}

		res := Validate(c, bal.accounts(), now)
		if !res.Valid {
			for _, v := range res.Violations {
				v.Field = fmt.Sprintf("rows[%d].%s", i, v.Field)
				violations = append(violations, v)
			}

			continue
		}

		t := build(ownerID, c)
		if err := bal.apply(t.Effects()); err != nil {
			return nil, err
		}

		txs = append(txs, t)
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	for _, t := range txs {
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return nil, storeErr("insert transaction", err)
		}
	}

	written, err := writeBalances(ctx, tx, bal)
	if err != nil {
		return nil, err
	}

	for _, t := range txs {
		if err := appendTransactionEvent(ctx, tx, outbox.EventTransactionCreated, t, written); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	return txs, nil
}
