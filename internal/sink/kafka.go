package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/raysh454/offerlens/internal/model"
)

const (
	DefaultResultTopic = "offer.validated"
	DefaultErrorTopic  = "offer.validation_failed"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes results and failures as JSON, keyed by offer URL so all
// events for one offer land on the same partition.
type Kafka struct {
	writer      MessageWriter
	resultTopic string
	errorTopic  string
	now         func() time.Time
}

func NewKafka(brokers []string, resultTopic, errorTopic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	return NewKafkaWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, resultTopic, errorTopic), nil
}

// NewKafkaWithWriter uses w directly. Empty topics fall back to defaults.
func NewKafkaWithWriter(w MessageWriter, resultTopic, errorTopic string) *Kafka {
	if resultTopic == "" {
		resultTopic = DefaultResultTopic
	}
	if errorTopic == "" {
		errorTopic = DefaultErrorTopic
	}
	return &Kafka{
		writer:      w,
		resultTopic: resultTopic,
		errorTopic:  errorTopic,
		now:         time.Now,
	}
}

func (k *Kafka) Publish(ctx context.Context, r *model.ValidationResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return k.write(ctx, k.resultTopic, r.URL, payload)
}

func (k *Kafka) PublishError(ctx context.Context, rec model.ErrorRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error record: %w", err)
	}
	return k.write(ctx, k.errorTopic, rec.URL, payload)
}

func (k *Kafka) write(ctx context.Context, topic, key string, payload []byte) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  k.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
