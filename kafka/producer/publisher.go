package producer

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/imgprep/kafka"
	"github.com/kbukum/imgprep/logger"
)

// Publisher sends structured events.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	Close() error
}

// KafkaPublisher implements Publisher over a Producer.
type KafkaPublisher struct {
	producer *Producer
	log      *logger.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewPublisher creates a Publisher that wraps the given Producer.
func NewPublisher(producer *Producer, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaPublisher{
		producer: producer,
		log:      log.WithComponent("kafka.publisher"),
	}
}

// Publish writes event to the producer's topic as JSON, keyed by the
// event subject or, failing that, its ID.
func (p *KafkaPublisher) Publish(ctx context.Context, event kafka.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(partitionKey(event)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-source", Value: []byte(event.Source)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: event.Timestamp,
	}

	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.log.Debug("event published", logger.Fields(
		"event_type", event.Type,
		"topic", p.producer.Topic(),
		"subject", event.Subject,
	))
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func partitionKey(event kafka.Event) string {
	if event.Subject != "" {
		return event.Subject
	}
	return event.ID
}
