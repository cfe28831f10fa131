// Package notifier provides domain.Notifier implementations. Notification
// is fire-and-forget everywhere: a failed publish is logged and dropped,
// never surfaced to the mutation that produced the event.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
)

const publishTimeout = 5 * time.Second

// Kafka publishes domain events to a Kafka topic, keyed by owner ID so one
// customer's events stay ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafka creates a Kafka notifier writing to the given brokers and topic.
func NewKafka(brokers []string, topic string, log *zap.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		log: log,
	}
}

// Notify publishes the event. Errors are logged, not returned.
func (k *Kafka) Notify(ctx context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		k.log.Error("failed to encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OwnerID.String()),
		Value: payload,
		Time:  event.OccurredAt,
	})
	if err != nil {
		k.log.Error("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("owner_id", event.OwnerID.String()),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
