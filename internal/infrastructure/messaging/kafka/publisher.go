package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fraud-ledger/internal/domain/projection"
	"fraud-ledger/internal/pkg/config"
	"fraud-ledger/internal/pkg/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AlertPublisher writes fraud alerts to a Kafka topic, keyed by transaction
// id so every alert of a transaction lands on one partition.
type AlertPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewAlertPublisher creates a publisher for the configured alert topic
func NewAlertPublisher(cfg config.KafkaConfig, logger *zap.Logger) *AlertPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.FraudAlertsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newAlertPublisher(w, cfg.FraudAlertsTopic, logger)
}

func newAlertPublisher(w messageWriter, topic string, logger *zap.Logger) *AlertPublisher {
	return &AlertPublisher{writer: w, topic: topic, logger: logger.Named("alerts")}
}

// Publish sends one alert
func (p *AlertPublisher) Publish(ctx context.Context, alert projection.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(alert.TransactionID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(strconv.FormatInt(alert.EventID, 10))},
			{Key: "model_version", Value: []byte(alert.ModelVersion)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.AlertsPublished.WithLabelValues("error").Inc()
		p.logger.Error("failed to publish fraud alert",
			zap.String("topic", p.topic),
			zap.String("transaction_id", alert.TransactionID),
			zap.Error(err),
		)
		return fmt.Errorf("publish alert for %s: %w", alert.TransactionID, err)
	}

	metrics.AlertsPublished.WithLabelValues("ok").Inc()
	p.logger.Info("fraud alert published",
		zap.String("topic", p.topic),
		zap.String("transaction_id", alert.TransactionID),
		zap.Int64("event_id", alert.EventID),
	)
	return nil
}

// Close flushes and closes the writer
func (p *AlertPublisher) Close() error {
	return p.writer.Close()
}
