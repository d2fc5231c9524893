package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/tally/internal/account"
)

const foreignKeyViolation = "23503"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectAccountColumns = `
	id, owner_id, name, currency, opening_balance, balance, version, created_at, updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*account.Account, error) {
	var a account.Account
	if err := s.Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Currency, &a.OpeningBalance,
		&a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, name, currency, opening_balance, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	id := uuid.New()

	err := s.db.QueryRowContext(ctx, query,
		id,
		a.OwnerID,
		a.Name,
		a.Currency,
		a.OpeningBalance,
		a.Balance,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	a.ID = id

	return nil
}

func (s *Store) GetAccount(ctx context.Context, ownerID, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE id = $1 AND owner_id = $2`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}

		return nil, fmt.Errorf("getting account: %w", err)
	}

	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]*account.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY name ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

func (s *Store) RenameAccount(ctx context.Context, ownerID, id uuid.UUID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, name,
	)
	if err != nil {
		return fmt.Errorf("renaming account: %w", err)
	}

	return expectOne(res, "renaming account")
}

// DeleteAccount only removes unreferenced accounts. When nothing is deleted
// it tells a missing account apart from one still in use.
func (s *Store) DeleteAccount(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `
		DELETE FROM accounts a
		WHERE a.id = $1 AND a.owner_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.account_id = a.id OR t.to_account_id = a.id
		  )
	`

	res, err := s.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return deleteErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	if n == 1 {
		return nil
	}

	var exists bool

	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND owner_id = $2)`, id, ownerID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking account: %w", err)
	}

	if exists {
		return account.ErrInUse
	}

	return account.ErrNotFound
}

// deleteErr maps a foreign key violation to ErrInUse. It happens when a
// transaction is inserted between the NOT EXISTS check and the delete.
func deleteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return account.ErrInUse
	}

	return fmt.Errorf("deleting account: %w", err)
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return account.ErrNotFound
	}

	return nil
}
