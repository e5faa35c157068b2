// Package metrics exposes Prometheus collectors for escrow settlement and the
// AML gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AMLDecisions counts persisted AML checks by decision and operation.
	AMLDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowgate",
			Subsystem: "aml",
			Name:      "decisions_total",
			Help:      "AML checks recorded, by decision and operation",
		},
		[]string{"decision", "operation"},
	)

	// SettlementOutcomes counts fund/release attempts by result.
	SettlementOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowgate",
			Subsystem: "settlement",
			Name:      "outcomes_total",
			Help:      "Settlement attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// SettlementDuration observes end-to-end fund/release latency.
	SettlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrowgate",
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Duration of fund/release requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// EscrowsCreated counts created escrows by currency.
	EscrowsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowgate",
			Subsystem: "ledger",
			Name:      "escrows_created_total",
			Help:      "Escrows created, by currency",
		},
		[]string{"currency"},
	)

	// RateLimited counts requests refused by the settlement rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowgate",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests refused with 429, by route",
		},
		[]string{"route"},
	)

	// AuditPublishFailures counts audit events that could not be delivered.
	AuditPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "escrowgate",
			Subsystem: "audit",
			Name:      "publish_failures_total",
			Help:      "Audit events that failed to publish",
		},
	)
)

// Outcome labels for SettlementOutcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeBlocked  = "blocked"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)
