package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
)

// Reconciliation compares an account's cached balance with the balance
// replayed from its opening balance and transaction log.
type Reconciliation struct {
	AccountID uuid.UUID
	Cached    decimal.Decimal
	Computed  decimal.Decimal
	// Drift is Cached minus Computed.
	Drift   decimal.Decimal
	Applied bool
}

// Err returns ErrBalanceDrift when the cached balance is off and was not
// repaired.
func (r *Reconciliation) Err() error {
	if r.Drift.IsZero() || r.Applied {
		return nil
	}

	return fmt.Errorf("%w: account %s cached %s, computed %s", ErrBalanceDrift,
		r.AccountID, r.Cached.StringFixed(amountPlaces), r.Computed.StringFixed(amountPlaces))
}

// Reconcile recomputes one account. With apply set, a drifted balance is
// overwritten with the computed one.
func (s *Service) Reconcile(ctx context.Context, ownerID, accountID uuid.UUID, apply bool) (*Reconciliation, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	accounts, err := tx.LockAccounts(ctx, ownerID, []uuid.UUID{accountID})
	if err != nil {
		return nil, storeErr("lock accounts", err)
	}

	a, ok := accounts[accountID]
	if !ok {
		return nil, accountMissing(accountID)
	}

	r, err := reconcile(ctx, tx, ownerID, a, apply)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	return r, nil
}

// ReconcileOwner recomputes every account of the owner in one unit of work.
func (s *Service) ReconcileOwner(ctx context.Context, ownerID uuid.UUID, apply bool) ([]*Reconciliation, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	ids, err := tx.ListAccountIDs(ctx, ownerID)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}

	accounts, err := tx.LockAccounts(ctx, ownerID, ids)
	if err != nil {
		return nil, storeErr("lock accounts", err)
	}

	results := make([]*Reconciliation, 0, len(ids))

	for _, id := range ids {
		a, ok := accounts[id]
		if !ok {
			continue
		}

		r, err := reconcile(ctx, tx, ownerID, a, apply)
		if err != nil {
			return nil, err
		}

		results = append(results, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	return results, nil
}

func reconcile(ctx context.Context, tx Tx, ownerID uuid.UUID, a *account.Account, apply bool) (*Reconciliation, error) {
	txs, err := tx.ListByAccount(ctx, ownerID, a.ID)
	if err != nil {
		return nil, storeErr("list account transactions", err)
	}

	computed := a.OpeningBalance

	for _, t := range txs {
		for _, e := range t.Effects() {
			if e.AccountID == a.ID {
				computed = computed.Add(e.Delta)
			}
		}
	}

	r := &Reconciliation{
		AccountID: a.ID,
		Cached:    a.Balance,
		Computed:  computed,
		Drift:     a.Balance.Sub(computed),
	}

	if !apply || r.Drift.IsZero() {
		return r, nil
	}

	if _, err := tx.SetBalance(ctx, a.ID, computed); err != nil {
		return nil, storeErr("set balance", err)
	}

	if err := appendReconciledEvent(ctx, tx, r, ownerID); err != nil {
		return nil, err
	}

	r.Applied = true

	return r, nil
}
