package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-ingest-service/internal/config"
	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
)

// Publisher produces a change feed of newly stored or refreshed records.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a Kafka producer for the configured change-feed topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

// Publish writes one message per record in a single WriteMessages call.
// Messages are keyed by natural id so updates to a tsunami alert stay ordered.
func (p *Publisher) Publish(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	storedAt := p.now().UTC()
	msgs := make([]kafkago.Message, len(recs))
	for i, rec := range recs {
		msg, err := serializeToMessage(rec, storedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	p.logger.Debug("records published", "count", len(msgs), "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a record into a Kafka message.
func serializeToMessage(rec domain.Record, storedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record %s: %w", rec.EntityKind(), rec.NaturalID(), err)
	}
	return kafkago.Message{
		Key:   []byte(rec.NaturalID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(rec.EntityKind())},
			{Key: "source", Value: []byte(rec.SourceName())},
			{Key: "stored_at", Value: []byte(storedAt.Format(time.RFC3339))},
		},
	}, nil
}
