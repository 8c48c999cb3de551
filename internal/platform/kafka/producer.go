// Package kafka wraps the franz-go producer used to fan audit events out to
// downstream consumers (SIEM, compliance archival). The local store remains
// the source of truth; Kafka delivery is asynchronous.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer connects to the given comma-separated broker list. Returns nil
// when brokers is empty (Kafka not configured).
func NewProducer(brokers, topic string, logger *slog.Logger) (*Producer, error) {
	if brokers == "" {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Publish produces a record asynchronously. Delivery failures are logged, not
// propagated; the durable write already happened in the audit store.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: value}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.ErrorContext(ctx, "kafka produce failed",
				"topic", r.Topic,
				"key", string(r.Key),
				"error", err,
			)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Producer) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}
