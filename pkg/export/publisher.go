package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
	"github.com/Sternrassler/github-stars-collector/pkg/logging"
	"github.com/Sternrassler/github-stars-collector/pkg/stats"
)

// summaryKey marks the metrics summary message on the topic.
const summaryKey = "summary"

// KafkaConfig holds the publisher settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Publisher streams collected records and the metrics summary to a Kafka
// topic, keyed by repository name so downstream consumers get per-repository
// ordering.
type Publisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewPublisher creates a publisher. At least one broker is required.
func NewPublisher(config KafkaConfig) (*Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("export: no kafka brokers configured")
	}
	if config.Topic == "" {
		return nil, errors.New("export: no kafka topic configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	return &Publisher{
		writer: writer,
		logger: logging.NewLogger("export"),
	}, nil
}

// PublishRecords sends one message per record.
func (p *Publisher) PublishRecords(ctx context.Context, records []github.Repository) error {
	if len(records) == 0 {
		return nil
	}

	messages, err := recordMessages(records)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("write records to kafka: %w", err)
	}

	p.logger.Info().
		Int("records", len(messages)).
		Str("topic", p.writer.Topic).
		Msg("Collected records published")
	return nil
}

// PublishSummary sends the metrics summary as a single message.
func (p *Publisher) PublishSummary(ctx context.Context, summary *stats.Summary) error {
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(summaryKey),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("write summary to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func recordMessages(records []github.Repository) ([]kafka.Message, error) {
	now := time.Now()
	messages := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", r.NameWithOwner, err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(r.NameWithOwner),
			Value: value,
			Time:  now,
		})
	}
	return messages, nil
}
