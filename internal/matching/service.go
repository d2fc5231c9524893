package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	FindMatch(ctx context.Context, ownerID uuid.UUID, rawDescription string) (string, error)
	CreateMapping(ctx context.Context, ownerID uuid.UUID, rawPattern, preferredSource string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the owner's preferred source for a raw bank description,
// or "" when no mapping matches.
func (s *Service) Suggest(ctx context.Context, ownerID uuid.UUID, rawDescription string) (string, error) {
	return s.repo.FindMatch(ctx, ownerID, rawDescription)
}

// Learn remembers that descriptions containing rawPattern should be
// recorded with preferredSource.
func (s *Service) Learn(ctx context.Context, ownerID uuid.UUID, rawPattern, preferredSource string) error {
	rawPattern = strings.TrimSpace(rawPattern)
	preferredSource = strings.TrimSpace(preferredSource)

	if rawPattern == "" || preferredSource == "" {
		return fmt.Errorf("%w: pattern and source are required", ErrInvalid)
	}

	return s.repo.CreateMapping(ctx, ownerID, rawPattern, preferredSource)
}

// Apply fills in the preferred source for every description it knows.
// Descriptions without a mapping are returned unchanged.
func (s *Service) Apply(ctx context.Context, ownerID uuid.UUID, descriptions []string) ([]string, error) {
	out := make([]string, len(descriptions))

	for i, raw := range descriptions {
		preferred, err := s.repo.FindMatch(ctx, ownerID, raw)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", raw, err)
		}

		out[i] = raw
		if preferred != "" {
			out[i] = preferred
		}
	}

	return out, nil
}
