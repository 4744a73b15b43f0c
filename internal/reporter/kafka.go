package reporter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter publishes failure records and summaries as JSON, keyed by site.
type KafkaReporter struct {
	writer messageWriter
}

func NewKafkaReporter(brokers []string, topic string) *KafkaReporter {
	return NewKafkaReporterWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	})
}

func NewKafkaReporterWithWriter(writer messageWriter) *KafkaReporter {
	return &KafkaReporter{writer: writer}
}

func (k *KafkaReporter) publish(ctx context.Context, kind, site string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	msg := kafka.Message{
		Key:     []byte(site),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}
	return nil
}

func (k *KafkaReporter) ReportFailure(ctx context.Context, rec FailureRecord) error {
	return k.publish(ctx, "failure", rec.Site, rec)
}

func (k *KafkaReporter) ReportSummary(ctx context.Context, sum Summary) error {
	return k.publish(ctx, "summary", sum.Site, sum)
}

func (k *KafkaReporter) Close() error {
	return k.writer.Close()
}
