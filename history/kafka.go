package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/presence"
)

const (
	publishMaxRetries     = 3
	publishInitialBackoff = 100 * time.Millisecond
	publishMaxBackoff     = 2 * time.Second
)

// Kafka publishes activity-history events to a topic consumed by the
// long-term history pipeline. Recording is fire-and-forget: publish failures
// are retried briefly, then logged and dropped, never surfaced to the caller.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

func NewKafka(brokers []string, topic string, log zerolog.Logger) (*Kafka, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = publishMaxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("creating history producer: %w", err)
	}
	return &Kafka{producer: producer, topic: topic, log: log}, nil
}

type historyRecord struct {
	UserID    string            `json:"user_id"`
	Timestamp string            `json:"timestamp"`
	Type      string            `json:"type"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Record publishes the event asynchronously so the triggering operation never
// waits on the history pipeline.
func (k *Kafka) Record(ctx context.Context, event presence.HistoryEvent) {
	data, err := json.Marshal(historyRecord{
		UserID:    event.UserID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Type:      event.Type,
		Extra:     event.Extra,
	})
	if err != nil {
		k.log.Warn().Err(err).Msg("failed to encode history event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(event.UserID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.Timestamp,
	}

	go func() {
		operation := func() error {
			_, _, err := k.producer.SendMessage(msg)
			return err
		}
		strategy := backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(publishInitialBackoff),
				backoff.WithMaxInterval(publishMaxBackoff),
			),
			publishMaxRetries,
		)
		if err := backoff.Retry(operation, strategy); err != nil {
			k.log.Warn().Err(err).
				Str("user_id", event.UserID).
				Str("event_type", event.Type).
				Msg("dropping history event after retries")
		}
	}()
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
