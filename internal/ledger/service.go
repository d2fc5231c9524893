package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	// Begin opens the unit of work every ledger mutation runs in.
	Begin(ctx context.Context) (Tx, error)
	GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]*Transaction, error)
}

type AccountStore interface {
	// LockAccounts returns the owner's accounts among ids, locked until the
	// unit of work ends. Ids that do not exist or belong to someone else are
	// left out of the map.
	LockAccounts(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*account.Account, error)
	SetBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) (*account.Account, error)
	ListAccountIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}

type TransactionLog interface {
	InsertTransaction(ctx context.Context, t *Transaction) error
	// GetTransaction locks the record. It returns ErrNotFound for missing
	// and foreign ids alike.
	GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id uuid.UUID) error
	// ListByAccount returns every transaction touching the account in commit order.
	ListByAccount(ctx context.Context, ownerID, accountID uuid.UUID) ([]*Transaction, error)
}

type Tx interface {
	AccountStore
	TransactionLog
	AppendEvent(ctx context.Context, e *outbox.Event) error
	Commit() error
	Rollback() error
}

type Option func(*Service)

// WithClock overrides the clock used to reject future-dated transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Patch holds the fields of an update. Nil fields keep their current value.
type Patch struct {
	Type        *Type
	Amount      *string
	AccountID   *string
	ToAccountID *string
	Source      *string
	Date        *string
}

func (p Patch) apply(c Candidate) Candidate {
	if p.Type != nil {
		if *p.Type != TypeTransfer && p.ToAccountID == nil {
			c.ToAccountID = ""
		}

		c.Type = *p.Type
	}

	if p.Amount != nil {
		c.Amount = *p.Amount
	}

	if p.AccountID != nil {
		c.AccountID = *p.AccountID
	}

	if p.ToAccountID != nil {
		c.ToAccountID = *p.ToAccountID
	}

	if p.Source != nil {
		c.Source = *p.Source
	}

	if p.Date != nil {
		c.Date = *p.Date
	}

	return c
}

// Create validates c against the owner's locked accounts and commits the
// transaction together with its balance effects.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, c Candidate) (*Transaction, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	accounts, err := tx.LockAccounts(ctx, ownerID, c.referencedIDs())
	if err != nil {
		return nil, storeErr("lock accounts", err)
	}

	if err := Validate(c, accounts, s.now()).Err(); err != nil {
		return nil, err
	}

	t := build(ownerID, c)
	bal := newBalances(accounts)

	if err := bal.apply(t.Effects()); err != nil {
		return nil, err
	}

	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, storeErr("insert transaction", err)
	}

	written, err := writeBalances(ctx, tx, bal)
	if err != nil {
		return nil, err
	}

	if err := appendTransactionEvent(ctx, tx, outbox.EventTransactionCreated, t, written); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	return t, nil
}

// Update reverses the original effects on every account the transaction
// touched, validates the merged candidate against the reversed balances and
// applies the new effects on top. An update that changes nothing writes
// nothing.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, patch Patch) (*Transaction, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback()

	old, err := tx.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, storeErr("get transaction", err)
	}

	c := patch.apply(CandidateFrom(old))

	accounts, err := tx.LockAccounts(ctx, ownerID, unionIDs(old.AccountIDs(), c.referencedIDs()))
	if err != nil {
		return nil, storeErr("lock accounts", err)
	}

	bal := newBalances(accounts)
	if err := bal.apply(old.Reversal()); err != nil {
		return nil, err
	}

	if err := Validate(c, bal.accounts(), s.now()).Err(); err != nil {
		return nil, err
	}

	updated := build(ownerID, c)
	updated.ID = old.ID
	updated.CreatedAt = old.CreatedAt
	updated.UpdatedAt = old.UpdatedAt

	if sameRecord(old, updated) {
		return old, nil
	}

	if err := bal.apply(updated.Effects()); err != nil {
		return nil, err
	}

	if err := bal.checkOverdraft(); err != nil {
		return nil, err
	}

	if err := tx.UpdateTransaction(ctx, updated); err != nil {
		return nil, storeErr("update transaction", err)
	}

	written, err := writeBalances(ctx, tx, bal)
	if err != nil {
		return nil, err
	}

	if err := appendTransactionEvent(ctx, tx, outbox.EventTransactionUpdated, updated, written); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit", err)
	}

	return updated, nil
}

// Delete removes the transaction and reverses its effects. It never refuses
// on balance grounds, so a reversed income may leave a negative balance.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	old, err := tx.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return storeErr("get transaction", err)
	}

	accounts, err := tx.LockAccounts(ctx, ownerID, old.AccountIDs())
	if err != nil {
		return storeErr("lock accounts", err)
	}

	bal := newBalances(accounts)
	if err := bal.apply(old.Reversal()); err != nil {
		return err
	}

	if err := tx.DeleteTransaction(ctx, ownerID, id); err != nil {
		return storeErr("delete transaction", err)
	}

	written, err := writeBalances(ctx, tx, bal)
	if err != nil {
		return err
	}

	if err := appendTransactionEvent(ctx, tx, outbox.EventTransactionDeleted, old, written); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, storeErr("get transaction", err)
	}

	return t, nil
}

// List returns the owner's transactions ordered by date, then creation.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]*Transaction, error) {
	txs, err := s.repo.ListTransactions(ctx, ownerID, filter)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}

	return txs, nil
}

func build(ownerID uuid.UUID, c Candidate) *Transaction {
	p := c.parse()

	return &Transaction{
		OwnerID:     ownerID,
		Type:        c.Type,
		Amount:      p.amount,
		AccountID:   p.accountID,
		ToAccountID: p.toAccountID,
		Source:      p.source,
		Date:        p.date,
	}
}

func sameRecord(a, b *Transaction) bool {
	if a.Type != b.Type || !a.Amount.Equal(b.Amount) || a.AccountID != b.AccountID ||
		a.Source != b.Source || !a.Date.Equal(b.Date) {
		return false
	}

	if (a.ToAccountID == nil) != (b.ToAccountID == nil) {
		return false
	}

	return a.ToAccountID == nil || *a.ToAccountID == *b.ToAccountID
}

func writeBalances(ctx context.Context, tx Tx, bal *balances) (map[uuid.UUID]*account.Account, error) {
	written := make(map[uuid.UUID]*account.Account)

	for _, id := range bal.changed() {
		a, err := tx.SetBalance(ctx, id, bal.current[id])
		if err != nil {
			return nil, storeErr("set balance", err)
		}

		written[id] = a
	}

	return written, nil
}

func unionIDs(sets ...[]uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})

	var ids []uuid.UUID

	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	return ids
}

func accountMissing(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}
