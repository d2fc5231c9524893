// Package memstore keeps accounts, the transaction log, outbox events and
// description mappings in memory. One unit of work runs at a time; it works
// on a copy of the data that replaces the shared copy on commit.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type storedTx struct {
	t   *ledger.Transaction
	seq int64
}

type mapping struct {
	ownerID   uuid.UUID
	raw       string
	preferred string
	seq       int64
}

type data struct {
	accounts map[uuid.UUID]*account.Account
	txs      map[uuid.UUID]storedTx
	events   []*eventRecord
	mappings []mapping
	seq      int64
}

func (d *data) next() int64 {
	d.seq++
	return d.seq
}

func (d *data) clone() *data {
	c := &data{
		accounts: make(map[uuid.UUID]*account.Account, len(d.accounts)),
		txs:      make(map[uuid.UUID]storedTx, len(d.txs)),
		events:   make([]*eventRecord, len(d.events)),
		mappings: slices.Clone(d.mappings),
		seq:      d.seq,
	}

	for id, a := range d.accounts {
		c.accounts[id] = a.Clone()
	}

	for id, st := range d.txs {
		c.txs[id] = storedTx{t: st.t.Clone(), seq: st.seq}
	}

	for i, e := range d.events {
		c.events[i] = e.clone()
	}

	return c
}

type Store struct {
	// work admits one writer at a time, from Begin to Commit or Rollback.
	work chan struct{}

	mu   sync.RWMutex
	data *data
	now  func() time.Time
}

func New() *Store {
	return &Store{
		work: make(chan struct{}, 1),
		data: &data{
			accounts: make(map[uuid.UUID]*account.Account),
			txs:      make(map[uuid.UUID]storedTx),
		},
		now: time.Now,
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.work <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.work
}

// write runs fn against the shared data outside of a unit of work.
func (s *Store) write(ctx context.Context, fn func(d *data) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.data)
}

func (s *Store) read() (*data, func()) {
	s.mu.RLock()
	return s.data, s.mu.RUnlock
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	d, unlock := s.read()
	staged := d.clone()
	unlock()

	return &Tx{store: s, data: staged, ctx: ctx}, nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id uuid.UUID) (*ledger.Transaction, error) {
	d, unlock := s.read()
	defer unlock()

	return getTransaction(d, ownerID, id)
}

func (s *Store) ListTransactions(_ context.Context, ownerID uuid.UUID, filter ledger.ListFilter) ([]*ledger.Transaction, error) {
	d, unlock := s.read()
	defer unlock()

	var found []storedTx

	for _, st := range d.txs {
		if st.t.OwnerID == ownerID && filter.Matches(st.t) {
			found = append(found, st)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if !a.t.Date.Equal(b.t.Date) {
			return a.t.Date.Before(b.t.Date)
		}

		return a.seq < b.seq
	})

	return cloneTxs(found), nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	return s.write(ctx, func(d *data) error {
		a.ID = uuid.New()
		a.CreatedAt = s.now()
		d.accounts[a.ID] = a.Clone()

		return nil
	})
}

func (s *Store) GetAccount(_ context.Context, ownerID, id uuid.UUID) (*account.Account, error) {
	d, unlock := s.read()
	defer unlock()

	a, ok := d.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return nil, account.ErrNotFound
	}

	return a.Clone(), nil
}

func (s *Store) ListAccounts(_ context.Context, ownerID uuid.UUID) ([]*account.Account, error) {
	d, unlock := s.read()
	defer unlock()

	var accounts []*account.Account

	for _, a := range d.accounts {
		if a.OwnerID == ownerID {
			accounts = append(accounts, a.Clone())
		}
	}

	slices.SortFunc(accounts, func(x, y *account.Account) int {
		return cmp.Or(strings.Compare(x.Name, y.Name), x.CreatedAt.Compare(y.CreatedAt))
	})

	return accounts, nil
}

func (s *Store) RenameAccount(ctx context.Context, ownerID, id uuid.UUID, name string) error {
	return s.write(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok || a.OwnerID != ownerID {
			return account.ErrNotFound
		}

		a.Name = name
		a.UpdatedAt = new(s.now())

		return nil
	})
}

func (s *Store) DeleteAccount(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.write(ctx, func(d *data) error {
		a, ok := d.accounts[id]
		if !ok || a.OwnerID != ownerID {
			return account.ErrNotFound
		}

		for _, st := range d.txs {
			if slices.Contains(st.t.AccountIDs(), id) {
				return account.ErrInUse
			}
		}

		delete(d.accounts, id)

		return nil
	})
}

func getTransaction(d *data, ownerID, id uuid.UUID) (*ledger.Transaction, error) {
	st, ok := d.txs[id]
	if !ok || st.t.OwnerID != ownerID {
		return nil, ledger.ErrNotFound
	}

	return st.t.Clone(), nil
}

func cloneTxs(found []storedTx) []*ledger.Transaction {
	txs := make([]*ledger.Transaction, len(found))
	for i, st := range found {
		txs[i] = st.t.Clone()
	}

	return txs
}
