package memstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

var errTxDone = errors.New("memstore: transaction already committed or rolled back")

type eventRecord struct {
	event       outbox.Event
	seq         int64
	leasedUntil time.Time
}

func (r *eventRecord) clone() *eventRecord {
	c := *r
	c.event.Payload = append([]byte(nil), r.event.Payload...)

	return &c
}

func (s *Store) Claim(ctx context.Context, limit int, lease time.Duration) ([]*outbox.Event, error) {
	var claimed []*outbox.Event

	err := s.write(ctx, func(d *data) error {
		now := s.now()

		for _, r := range d.events {
			if len(claimed) == limit {
				break
			}

			switch r.event.Status {
			case outbox.StatusPending:
			case outbox.StatusProcessing:
				if now.Before(r.leasedUntil) {
					continue
				}
			default:
				continue
			}

			r.event.Status = outbox.StatusProcessing
			r.leasedUntil = now.Add(lease)

			e := r.clone().event
			claimed = append(claimed, &e)
		}

		return nil
	})

	return claimed, err
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(d *data) error {
		r := findEvent(d, id)
		if r == nil {
			return outbox.ErrNotFound
		}

		r.event.Status = outbox.StatusPublished
		r.event.PublishedAt = new(s.now())

		return nil
	})
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxAttempts int) error {
	return s.write(ctx, func(d *data) error {
		r := findEvent(d, id)
		if r == nil {
			return outbox.ErrNotFound
		}

		r.event.Attempts++
		r.event.LastError = reason
		r.leasedUntil = time.Time{}

		r.event.Status = outbox.StatusPending
		if r.event.Attempts >= maxAttempts {
			r.event.Status = outbox.StatusFailed
		}

		return nil
	})
}

// Events returns a copy of every event in insertion order.
func (s *Store) Events() []outbox.Event {
	d, unlock := s.read()
	defer unlock()

	events := make([]outbox.Event, len(d.events))
	for i, r := range d.events {
		events[i] = r.clone().event
	}

	return events
}

func findEvent(d *data, id uuid.UUID) *eventRecord {
	for _, r := range d.events {
		if r.event.ID == id {
			return r
		}
	}

	return nil
}

// FindMatch returns the preferred source of the longest mapping contained in
// raw, or "" when none matches.
func (s *Store) FindMatch(_ context.Context, ownerID uuid.UUID, raw string) (string, error) {
	d, unlock := s.read()
	defer unlock()

	var best *mapping

	lower := strings.ToLower(raw)

	for i := range d.mappings {
		m := &d.mappings[i]
		if m.ownerID != ownerID || !strings.Contains(lower, strings.ToLower(m.raw)) {
			continue
		}

		if best == nil || len(m.raw) > len(best.raw) || (len(m.raw) == len(best.raw) && m.seq > best.seq) {
			best = m
		}
	}

	if best == nil {
		return "", nil
	}

	return best.preferred, nil
}

func (s *Store) CreateMapping(ctx context.Context, ownerID uuid.UUID, rawPattern, preferred string) error {
	return s.write(ctx, func(d *data) error {
		d.mappings = slices.DeleteFunc(d.mappings, func(m mapping) bool {
			return m.ownerID == ownerID && m.raw == rawPattern
		})

		d.mappings = append(d.mappings, mapping{
			ownerID:   ownerID,
			raw:       rawPattern,
			preferred: preferred,
			seq:       d.next(),
		})

		return nil
	})
}
