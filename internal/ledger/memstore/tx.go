package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

// Tx is a unit of work over a private copy of the store.
type Tx struct {
	store *Store
	data  *data
	ctx   context.Context
	done  bool
}

func (tx *Tx) check(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}

	if err := tx.ctx.Err(); err != nil {
		return err
	}

	return ctx.Err()
}

func (tx *Tx) LockAccounts(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*account.Account, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	locked := make(map[uuid.UUID]*account.Account, len(ids))

	for _, id := range ids {
		a, ok := tx.data.accounts[id]
		if ok && a.OwnerID == ownerID {
			locked[id] = a.Clone()
		}
	}

	return locked, nil
}

func (tx *Tx) SetBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) (*account.Account, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	a, ok := tx.data.accounts[accountID]
	if !ok {
		return nil, account.ErrNotFound
	}

	a.Balance = balance
	a.Version++
	a.UpdatedAt = new(tx.store.now())

	return a.Clone(), nil
}

func (tx *Tx) ListAccountIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	var ids []uuid.UUID

	for id, a := range tx.data.accounts {
		if a.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}

	slices.SortFunc(ids, compareIDs)

	return ids, nil
}

func (tx *Tx) InsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	for _, id := range t.AccountIDs() {
		a, ok := tx.data.accounts[id]
		if !ok || a.OwnerID != t.OwnerID {
			return ledger.ErrAccountNotFound
		}
	}

	t.ID = uuid.New()
	t.CreatedAt = tx.store.now()
	tx.data.txs[t.ID] = storedTx{t: t.Clone(), seq: tx.data.next()}

	return nil
}

func (tx *Tx) GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*ledger.Transaction, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	return getTransaction(tx.data, ownerID, id)
}

func (tx *Tx) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	st, ok := tx.data.txs[t.ID]
	if !ok || st.t.OwnerID != t.OwnerID {
		return ledger.ErrNotFound
	}

	t.UpdatedAt = new(tx.store.now())
	st.t = t.Clone()
	tx.data.txs[t.ID] = st

	return nil
}

func (tx *Tx) DeleteTransaction(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	st, ok := tx.data.txs[id]
	if !ok || st.t.OwnerID != ownerID {
		return ledger.ErrNotFound
	}

	delete(tx.data.txs, id)

	return nil
}

func (tx *Tx) ListByAccount(ctx context.Context, ownerID, accountID uuid.UUID) ([]*ledger.Transaction, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}

	var found []storedTx

	for _, st := range tx.data.txs {
		if st.t.OwnerID == ownerID && slices.Contains(st.t.AccountIDs(), accountID) {
			found = append(found, st)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	return cloneTxs(found), nil
}

func (tx *Tx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	if err := tx.check(ctx); err != nil {
		return err
	}

	e.CreatedAt = tx.store.now()
	tx.data.events = append(tx.data.events, &eventRecord{event: *e, seq: tx.data.next()})

	return nil
}

func (tx *Tx) Commit() error {
	if tx.done {
		return errTxDone
	}

	tx.done = true
	defer tx.store.release()

	if err := tx.ctx.Err(); err != nil {
		return err
	}

	tx.store.mu.Lock()
	tx.store.data = tx.data
	tx.store.mu.Unlock()

	return nil
}

// Rollback discards the staged data. It is a no-op after Commit.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.done = true
	tx.store.release()

	return nil
}

func compareIDs(a, b uuid.UUID) int {
	return slices.Compare(a[:], b[:])
}
