package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrJamesThe3rd/tally/internal/outbox"
)

// Publisher writes outbox events to a Kafka topic. Messages are keyed by
// owner so one owner's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// batchTimeout caps how long the writer waits to fill a batch. The
// dispatcher publishes one event at a time, so the 1s default would be paid
// per event.
const batchTimeout = 10 * time.Millisecond

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: newWriter(brokers, topic)}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
	}
}

func (p *Publisher) Publish(ctx context.Context, e *outbox.Event) error {
	err := p.writer.WriteMessages(ctx, message(e))
	if err != nil {
		return fmt.Errorf("writing %s message: %w", e.Type, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(e *outbox.Event) kafka.Message {
	return kafka.Message{
		Key:   []byte(e.OwnerID.String()),
		Value: e.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "aggregate_id", Value: []byte(e.AggregateID.String())},
		},
	}
}
