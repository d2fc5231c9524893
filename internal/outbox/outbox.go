package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventAccountReconciled  EventType = "account.reconciled"
)

// Status is the delivery state of an event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

var ErrNotFound = errors.New("outbox event not found")

// Event is written in the same store transaction as the change it describes.
type Event struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Type        EventType
	AggregateID uuid.UUID
	Payload     json.RawMessage
	Status      Status
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewEvent marshals payload into a pending event.
func NewEvent(ownerID uuid.UUID, typ EventType, aggregateID uuid.UUID, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", typ, err)
	}

	return &Event{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Type:        typ,
		AggregateID: aggregateID,
		Payload:     raw,
		Status:      StatusPending,
	}, nil
}

//go:generate mockgen -source=outbox.go -destination=repository_mock.go -package=outbox
type Repository interface {
	// Claim moves up to limit pending events (or processing events whose
	// lease expired) to processing and returns them oldest first.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]*Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	// MarkFailed records the error. The event goes back to pending while
	// attempts remain, and to failed after maxAttempts.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxAttempts int) error
}

type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}
