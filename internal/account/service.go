package account

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxNameLength = 100

var maxOpeningBalance = decimal.RequireFromString("999999999.99")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=account
type Repository interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, ownerID, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]*Account, error)
	RenameAccount(ctx context.Context, ownerID, id uuid.UUID, name string) error
	// DeleteAccount removes an account that no transaction references.
	// It returns ErrInUse otherwise.
	DeleteAccount(ctx context.Context, ownerID, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	OwnerID        uuid.UUID
	Name           string
	Currency       string
	OpeningBalance decimal.Decimal
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Account, error) {
	name, err := normalizeName(params.Name)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(params.Currency))
	if money.GetCurrency(code) == nil {
		return nil, fmt.Errorf("%w: unknown currency %q", ErrInvalid, params.Currency)
	}

	opening := params.OpeningBalance
	if opening.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", ErrInvalid)
	}

	if opening.GreaterThan(maxOpeningBalance) {
		return nil, fmt.Errorf("%w: opening balance exceeds %s", ErrInvalid, maxOpeningBalance.StringFixed(2))
	}

	if !opening.Equal(opening.Round(2)) {
		return nil, fmt.Errorf("%w: opening balance has more than 2 decimal places", ErrInvalid)
	}

	a := &Account{
		OwnerID:        params.OwnerID,
		Name:           name,
		Currency:       code,
		OpeningBalance: opening,
		Balance:        opening,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*Account, error) {
	return s.repo.ListAccounts(ctx, ownerID)
}

func (s *Service) Rename(ctx context.Context, ownerID, id uuid.UUID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	return s.repo.RenameAccount(ctx, ownerID, id, name)
}

// Delete refuses to remove an account while transactions still reference it.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.DeleteAccount(ctx, ownerID, id)
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalid)
	}

	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, maxNameLength)
	}

	return name, nil
}
