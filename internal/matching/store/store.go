package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindMatch(ctx context.Context, ownerID uuid.UUID, rawDescription string) (string, error) {
	query := `
		SELECT preferred_source
		FROM description_mappings
		WHERE owner_id = $1 AND $2 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	var preferred string

	err := s.db.QueryRowContext(ctx, query, ownerID, rawDescription).Scan(&preferred)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("finding match: %w", err)
	}

	return preferred, nil
}

func (s *Store) CreateMapping(ctx context.Context, ownerID uuid.UUID, rawPattern, preferredSource string) error {
	query := `
		INSERT INTO description_mappings (id, owner_id, raw_pattern, preferred_source, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id, raw_pattern) DO UPDATE SET preferred_source = EXCLUDED.preferred_source, created_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, uuid.New(), ownerID, rawPattern, preferredSource)
	if err != nil {
		return fmt.Errorf("creating mapping: %w", err)
	}

	return nil
}
