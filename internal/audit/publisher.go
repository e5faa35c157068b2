// Package audit delivers audit-log events to the audit side channel. The
// escrow service emits events; storage and fan-out belong to the consumers
// of the topic.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// Publisher emits audit events.
type Publisher interface {
	Publish(ctx context.Context, ev domain.AuditEvent) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a log-only
// publisher otherwise.
func New(cfg config.KafkaConfig, logger *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return NewLogPublisher(logger)
	}
	return NewKafkaPublisher(cfg, logger)
}

// ──────────────────────────────────────────────────────────────────────────────
// Kafka
// ──────────────────────────────────────────────────────────────────────────────

// KafkaPublisher writes each event as one JSON message keyed by resource id,
// so all events of one escrow land on the same partition in order.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
	logger  *slog.Logger
}

// defaultBatchTimeout caps how long a partial batch waits for more messages.
const defaultBatchTimeout = 10 * time.Millisecond

// NewKafkaPublisher creates a publisher for cfg.AuditTopic.
// Publish writes one message per call on the request path, so every message
// is flushed on its own.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.AuditTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: cfg.WriteTimeout,
			BatchSize:    1,
			BatchTimeout: batchTimeout,
		},
		timeout: cfg.WriteTimeout,
		logger:  logger,
	}
}

// Publish writes ev synchronously, bounded by the configured write timeout.
func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.AuditEvent) error {
	msg, err := EncodeMessage(ev)
	if err != nil {
		return err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("audit.KafkaPublisher.Publish %s: %w", ev.Action, err)
	}
	p.logger.Debug("audit event published",
		"action", ev.Action, "resource_id", ev.ResourceID, "topic", p.writer.Topic)
	return nil
}

// Close flushes pending writes and closes the connection.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EncodeMessage serialises ev into the wire message.
func EncodeMessage(ev domain.AuditEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("audit.EncodeMessage: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.ResourceID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(ev.Action)},
			{Key: "resource_type", Value: []byte(ev.ResourceType)},
		},
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Log-only
// ──────────────────────────────────────────────────────────────────────────────

// LogPublisher writes events to the structured log. Used in development and
// whenever no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev domain.AuditEvent) error {
	p.logger.Info("audit event",
		"action", ev.Action,
		"resource_type", ev.ResourceType,
		"resource_id", ev.ResourceID,
		"actor_user_id", ev.Actor.UserID,
		"actor_company_id", ev.Actor.CompanyID,
		"actor_ip", ev.Actor.IP,
		"metadata", map[string]any(ev.Metadata),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
