package ledger

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

type transactionPayload struct {
	ID          uuid.UUID        `json:"id"`
	Type        Type             `json:"type"`
	Amount      string           `json:"amount"`
	AccountID   uuid.UUID        `json:"account_id"`
	ToAccountID *uuid.UUID       `json:"to_account_id,omitempty"`
	Source      string           `json:"source"`
	Date        string           `json:"date"`
	Balances    []balancePayload `json:"balances"`
}

type balancePayload struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   string    `json:"balance"`
	Version   int64     `json:"version"`
}

type reconciledPayload struct {
	AccountID uuid.UUID `json:"account_id"`
	Previous  string    `json:"previous"`
	Balance   string    `json:"balance"`
	Drift     string    `json:"drift"`
}

func appendTransactionEvent(ctx context.Context, tx Tx, typ outbox.EventType, t *Transaction, written map[uuid.UUID]*account.Account) error {
	payload := transactionPayload{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      t.Amount.StringFixed(amountPlaces),
		AccountID:   t.AccountID,
		ToAccountID: t.ToAccountID,
		Source:      t.Source,
		Date:        t.Date.Format(time.DateOnly),
		Balances:    []balancePayload{},
	}

	// Every balance written by the unit of work, including accounts an
	// update moved the transaction away from.
	for _, id := range slices.SortedFunc(maps.Keys(written), compareIDs) {
		a := written[id]

		payload.Balances = append(payload.Balances, balancePayload{
			AccountID: a.ID,
			Balance:   a.Balance.StringFixed(amountPlaces),
			Version:   a.Version,
		})
	}

	e, err := outbox.NewEvent(t.OwnerID, typ, t.ID, payload)
	if err != nil {
		return err
	}

	if err := tx.AppendEvent(ctx, e); err != nil {
		return storeErr("append event", err)
	}

	return nil
}

func appendReconciledEvent(ctx context.Context, tx Tx, r *Reconciliation, ownerID uuid.UUID) error {
	e, err := outbox.NewEvent(ownerID, outbox.EventAccountReconciled, r.AccountID, reconciledPayload{
		AccountID: r.AccountID,
		Previous:  r.Cached.StringFixed(amountPlaces),
		Balance:   r.Computed.StringFixed(amountPlaces),
		Drift:     r.Drift.StringFixed(amountPlaces),
	})
	if err != nil {
		return err
	}

	if err := tx.AppendEvent(ctx, e); err != nil {
		return storeErr("append event", err)
	}

	return nil
}
