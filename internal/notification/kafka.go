package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// NewSyncProducer builds a producer that waits for full acknowledgement.
// Notification loss is tolerable; silent reordering inside a partition is not,
// so events for one order are keyed by its ID.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info().Strs("brokers", brokers).Msg("Kafka producer initialized")
	return producer, nil
}

// KafkaDispatcher publishes events as JSON to a single topic. The mail
// transport lives in a downstream consumer.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaDispatcher(producer sarama.SyncProducer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic}
}

func (d *KafkaDispatcher) Send(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notification: context done before send: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notification: failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := d.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("notification: failed to send message: %w", err)
	}

	log.Debug().
		Str("type", string(event.Type)).
		Str("order_number", event.OrderNumber).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Notification event published")

	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.producer.Close()
}
