package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
)

func sampleEvent() domain.AuditEvent {
	e := &domain.Escrow{
		ID:       uuid.MustParse("7b0e6f0a-6f8e-4d55-9d6e-0f6a3f1d2c11"),
		Amount:   decimal.RequireFromString("5000.00"),
		Currency: "USD",
	}
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	return domain.NewEscrowAuditEvent(domain.Actor{UserID: "u-1", IP: "10.0.0.1"}, domain.ActionEscrowFunded, e, at)
}

func TestEncodeMessage(t *testing.T) {
	ev := sampleEvent()

	msg, err := audit.EncodeMessage(ev)
	require.NoError(t, err)

	assert.Equal(t, ev.ResourceID, string(msg.Key), "messages are keyed by escrow id")
	assert.True(t, msg.Time.Equal(ev.OccurredAt))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "ESCROW_FUNDED", headers["action"])
	assert.Equal(t, "escrow", headers["resource_type"])

	var decoded struct {
		Action     string         `json:"action"`
		ResourceID string         `json:"resourceId"`
		Actor      domain.Actor   `json:"actor"`
		Metadata   map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ESCROW_FUNDED", decoded.Action)
	assert.Equal(t, "u-1", decoded.Actor.UserID)
	assert.Equal(t, "5000", decoded.Metadata["amount"])
	assert.Equal(t, "USD", decoded.Metadata["currency"])
}

func TestNew_SelectsPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := audit.New(config.KafkaConfig{}, logger)
	_, isLog := p.(*audit.LogPublisher)
	assert.True(t, isLog, "no brokers means log-only publishing")
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())

	k := audit.New(config.KafkaConfig{Brokers: []string{"localhost:9092"}, AuditTopic: "escrow.audit"}, logger)
	_, isKafka := k.(*audit.KafkaPublisher)
	assert.True(t, isKafka)
	assert.NoError(t, k.Close())
}
