package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/account"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

const foreignKeyViolation = "23503"

// Tx runs one ledger unit of work in a database transaction. Row locks are
// taken with SELECT ... FOR UPDATE and released on commit or rollback.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback is safe to call after Commit.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

// LockAccounts locks rows in ascending id order so that concurrent units of
// work touching the same accounts cannot deadlock.
func (t *Tx) LockAccounts(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*account.Account, error) {
	locked := make(map[uuid.UUID]*account.Account, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)

	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `
		SELECT id, owner_id, name, currency, opening_balance, balance, version, created_at, updated_at
		FROM accounts
		WHERE owner_id = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("locking accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a account.Account
		if err := rows.Scan(
			&a.ID, &a.OwnerID, &a.Name, &a.Currency, &a.OpeningBalance,
			&a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		locked[a.ID] = &a
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return locked, nil
}

func (t *Tx) SetBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) (*account.Account, error) {
	query := `
		UPDATE accounts
		SET balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING id, owner_id, name, currency, opening_balance, balance, version, created_at, updated_at
	`

	var a account.Account

	err := t.tx.QueryRowContext(ctx, query, accountID, balance).Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Currency, &a.OpeningBalance,
		&a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}

		return nil, fmt.Errorf("setting balance: %w", err)
	}

	return &a, nil
}

func (t *Tx) ListAccountIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM accounts WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing account ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning account id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account ids: %w", err)
	}

	return ids, nil
}

func (t *Tx) InsertTransaction(ctx context.Context, tr *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (id, owner_id, type, amount, account_id, to_account_id, source, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`

	id := uuid.New()

	err := t.tx.QueryRowContext(ctx, query,
		id,
		tr.OwnerID,
		tr.Type,
		tr.Amount,
		tr.AccountID,
		tr.ToAccountID,
		tr.Source,
		tr.Date,
	).Scan(&tr.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ledger.ErrAccountNotFound
		}

		return fmt.Errorf("creating transaction: %w", err)
	}

	tr.ID = id

	return nil
}

func (t *Tx) GetTransaction(ctx context.Context, ownerID, id uuid.UUID) (*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE`

	tr, err := scanTransaction(t.tx.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tr, nil
}

func (t *Tx) UpdateTransaction(ctx context.Context, tr *ledger.Transaction) error {
	query := `
		UPDATE transactions
		SET type = $3, amount = $4, account_id = $5, to_account_id = $6, source = $7, date = $8, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING updated_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		tr.ID,
		tr.OwnerID,
		tr.Type,
		tr.Amount,
		tr.AccountID,
		tr.ToAccountID,
		tr.Source,
		tr.Date,
	).Scan(&tr.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ErrNotFound
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ledger.ErrAccountNotFound
		}

		return fmt.Errorf("updating transaction: %w", err)
	}

	return nil
}

func (t *Tx) DeleteTransaction(ctx context.Context, ownerID, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	if n == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (t *Tx) ListByAccount(ctx context.Context, ownerID, accountID uuid.UUID) ([]*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE owner_id = $1 AND (account_id = $2 OR to_account_id = $2)
		ORDER BY seq ASC`

	return queryTransactions(ctx, t.tx, query, ownerID, accountID)
}

func (t *Tx) AppendEvent(ctx context.Context, e *outbox.Event) error {
	query := `
		INSERT INTO outbox_events (id, owner_id, event_type, aggregate_id, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	err := t.tx.QueryRowContext(ctx, query,
		e.ID, e.OwnerID, e.Type, e.AggregateID, []byte(e.Payload), e.Status,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending outbox event: %w", err)
	}

	return nil
}
