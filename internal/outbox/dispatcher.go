package outbox

import (
	"context"
	"log/slog"
	"time"
)

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// Lease is how long a claimed event stays invisible to other dispatchers.
	Lease time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}

	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}

	if c.Lease <= 0 {
		c.Lease = time.Minute
	}

	return c
}

// Dispatcher delivers committed events to a Publisher, at least once.
type Dispatcher struct {
	repo Repository
	pub  Publisher
	cfg  DispatcherConfig
}

func NewDispatcher(repo Repository, pub Publisher, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{repo: repo, pub: pub, cfg: cfg.withDefaults()}
}

// Run polls until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("outbox dispatch failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims one batch and publishes it. It returns the number of
// events published.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	events, err := d.repo.Claim(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}

	published := 0

	for _, e := range events {
		if err := d.pub.Publish(ctx, e); err != nil {
			slog.Warn("publishing outbox event", "id", e.ID, "type", e.Type, "attempt", e.Attempts+1, "error", err)

			if err := d.repo.MarkFailed(ctx, e.ID, err.Error(), d.cfg.MaxAttempts); err != nil {
				return published, err
			}

			continue
		}

		if err := d.repo.MarkPublished(ctx, e.ID); err != nil {
			return published, err
		}

		published++
	}

	return published, nil
}

// LogPublisher writes events to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e *Event) error {
	p.logger.InfoContext(ctx, "ledger event",
		"id", e.ID,
		"type", e.Type,
		"owner_id", e.OwnerID,
		"aggregate_id", e.AggregateID,
		"payload", string(e.Payload),
	)

	return nil
}
