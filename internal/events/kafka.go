package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// Kafka publishes settlements to a topic, keyed by share id so that the
// events of one share stay ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a synchronous Kafka publisher that waits for all
// in-sync replicas.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,

			AllowAutoTopicCreation: true,
		},
	}
}

// Name implements Publisher.
func (k *Kafka) Name() string { return "kafka" }

// PublishSettlement implements Publisher.
func (k *Kafka) PublishSettlement(ctx context.Context, shareID string, trades []domain.ShareTransaction) error {
	payload, err := encode(shareID, trades)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(shareID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: write %s: %w", k.writer.Topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

var _ Publisher = (*Kafka)(nil)
