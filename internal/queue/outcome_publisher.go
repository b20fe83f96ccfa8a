package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// OutcomePublisher publishes action outcome events.
type OutcomePublisher struct {
	writer *kafka.Writer
}

// NewOutcomePublisher constructs an outcome publisher for the given topic.
func NewOutcomePublisher(k *Kafka, topic string) *OutcomePublisher {
	return &OutcomePublisher{writer: k.NewWriter(topic)}
}

// PublishOutcome emits an outcome message to Kafka, keyed by campaign so
// one campaign's history stays ordered within a partition.
func (p *OutcomePublisher) PublishOutcome(ctx context.Context, msg OutcomeMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("outcome publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   msg.CampaignID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("outcome publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *OutcomePublisher) Close() error {
	return p.writer.Close()
}
