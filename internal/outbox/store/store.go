package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Claim selects claimable rows with FOR UPDATE SKIP LOCKED so that several
// dispatchers can poll the same table without handing out an event twice.
func (s *Store) Claim(ctx context.Context, limit int, lease time.Duration) ([]*outbox.Event, error) {
	query := `
		WITH claimable AS (
			SELECT id
			FROM outbox_events
			WHERE status = 'pending'
			   OR (status = 'processing' AND locked_until < NOW())
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_events e
		SET status = 'processing', locked_until = NOW() + make_interval(secs => $2)
		FROM claimable
		WHERE e.id = claimable.id
		RETURNING e.id, e.owner_id, e.event_type, e.aggregate_id, e.payload, e.status,
			e.attempts, e.last_error, e.created_at, e.published_at
	`

	rows, err := s.db.QueryContext(ctx, query, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claiming outbox events: %w", err)
	}
	defer rows.Close()

	var events []*outbox.Event

	for rows.Next() {
		var (
			e       outbox.Event
			typ     string
			status  string
			payload []byte
		)

		if err := rows.Scan(
			&e.ID, &e.OwnerID, &typ, &e.AggregateID, &payload, &status,
			&e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning outbox event: %w", err)
		}

		e.Type = outbox.EventType(typ)
		e.Status = outbox.Status(status)
		e.Payload = payload

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outbox events: %w", err)
	}

	// RETURNING does not keep the CTE order.
	slices.SortStableFunc(events, func(a, b *outbox.Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return events, nil
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = 'published', published_at = NOW(), locked_until = NULL
		WHERE id = $1
	`

	return s.exec(ctx, "marking event published", query, id)
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxAttempts int) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1,
			last_error = $2,
			locked_until = NULL,
			status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`

	return s.exec(ctx, "marking event failed", query, id, reason, maxAttempts)
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return outbox.ErrNotFound
	}

	return nil
}
