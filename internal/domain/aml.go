package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Risk level / decision
// ──────────────────────────────────────────────────────────────────────────────

// RiskLevel buckets a numeric risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Decision is the outcome of an AML check.
type Decision string

const (
	DecisionPass   Decision = "PASS"
	DecisionReview Decision = "REVIEW"
	DecisionBlock  Decision = "BLOCK"
)

// IsValid reports whether d is one of the known decisions.
func (d Decision) IsValid() bool {
	return d == DecisionPass || d == DecisionReview || d == DecisionBlock
}

// Score bands shared by LevelForScore and DecisionForScore.
const (
	highRiskScore   = 80
	mediumRiskScore = 50
)

// Fixed scores assigned per threshold tier.
const (
	ScoreBaseline  = 10
	ScoreMonitor   = 45
	ScoreEnhanced  = 68
	ScoreHardBlock = 92
)

// Reasons attached to each tier.
const (
	ReasonBaseline  = "Low transaction risk"
	ReasonMonitor   = "Amount exceeds monitoring threshold"
	ReasonEnhanced  = "Amount exceeds enhanced due diligence threshold"
	ReasonHardBlock = "Amount exceeds hard block threshold"
)

// LevelForScore derives the risk level from a 0–100 score.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= highRiskScore:
		return RiskHigh
	case score >= mediumRiskScore:
		return RiskMedium
	default:
		return RiskLow
	}
}

// DecisionForScore derives the decision from a 0–100 score.
func DecisionForScore(score int) Decision {
	switch {
	case score >= highRiskScore:
		return DecisionBlock
	case score >= mediumRiskScore:
		return DecisionReview
	default:
		return DecisionPass
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Thresholds
// ──────────────────────────────────────────────────────────────────────────────

// Thresholds are the notional amounts (in the transaction's own currency)
// at which each risk tier starts. Lower bounds are inclusive.
type Thresholds struct {
	Monitor              decimal.Decimal
	EnhancedDueDiligence decimal.Decimal
	HardBlock            decimal.Decimal
}

// DefaultThresholds returns 100 000 / 250 000 / 1 000 000.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Monitor:              decimal.NewFromInt(100_000),
		EnhancedDueDiligence: decimal.NewFromInt(250_000),
		HardBlock:            decimal.NewFromInt(1_000_000),
	}
}

// IsOrdered reports whether Monitor <= EnhancedDueDiligence <= HardBlock and
// all are positive.
func (t Thresholds) IsOrdered() bool {
	return t.Monitor.IsPositive() &&
		t.Monitor.LessThanOrEqual(t.EnhancedDueDiligence) &&
		t.EnhancedDueDiligence.LessThanOrEqual(t.HardBlock)
}

// ThresholdTable selects thresholds per currency. Amounts are never
// converted between currencies: a currency without an entry uses Default,
// so 1 000 000 JPY is judged exactly like 1 000 000 USD unless JPY is
// configured explicitly.
type ThresholdTable struct {
	Default     Thresholds
	PerCurrency map[string]Thresholds
}

// DefaultThresholdTable has no per-currency overrides.
func DefaultThresholdTable() ThresholdTable {
	return ThresholdTable{Default: DefaultThresholds()}
}

// For returns the thresholds that apply to currency.
func (t ThresholdTable) For(currency string) Thresholds {
	if th, ok := t.PerCurrency[NormalizeCurrency(currency)]; ok {
		return th
	}
	return t.Default
}

// NormalizeCurrency upper-cases the code and applies DefaultCurrency when blank.
func NormalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

// ──────────────────────────────────────────────────────────────────────────────
// Assessment
// ──────────────────────────────────────────────────────────────────────────────

// Assessment is the pure result of scoring one proposed money movement.
type Assessment struct {
	Score    int
	Level    RiskLevel
	Decision Decision
	Reason   string
}

// Assess scores amount against the thresholds configured for currency.
// It is deterministic and has no side effects.
func Assess(amount decimal.Decimal, currency string, table ThresholdTable) Assessment {
	th := table.For(currency)

	score, reason := ScoreBaseline, ReasonBaseline
	switch {
	case amount.GreaterThanOrEqual(th.HardBlock):
		score, reason = ScoreHardBlock, ReasonHardBlock
	case amount.GreaterThanOrEqual(th.EnhancedDueDiligence):
		score, reason = ScoreEnhanced, ReasonEnhanced
	case amount.GreaterThanOrEqual(th.Monitor):
		score, reason = ScoreMonitor, ReasonMonitor
	}

	return Assessment{
		Score:    score,
		Level:    LevelForScore(score),
		Decision: DecisionForScore(score),
		Reason:   reason,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Gate policy
// ──────────────────────────────────────────────────────────────────────────────

// GatePolicy decides whether a decision lets money move. Settlement code
// asks the policy and never inspects decisions directly.
type GatePolicy func(Decision) bool

// PermitUnlessBlocked lets PASS and REVIEW through and refuses BLOCK.
// REVIEW does not hold funds for manual approval.
func PermitUnlessBlocked(d Decision) bool {
	return d != DecisionBlock
}

// Permits applies the policy, falling back to PermitUnlessBlocked when nil.
func (p GatePolicy) Permits(d Decision) bool {
	if p == nil {
		return PermitUnlessBlocked(d)
	}
	return p(d)
}

// ──────────────────────────────────────────────────────────────────────────────
// AMLCheck
// ──────────────────────────────────────────────────────────────────────────────

// AMLCheck is the immutable audit record of one risk evaluation. Level and
// Decision are always derived from RiskScore when the record is built.
type AMLCheck struct {
	ID        uuid.UUID       `json:"id"        db:"id"`
	DealID    *string         `json:"dealId"    db:"deal_id"`
	EscrowID  *uuid.UUID      `json:"escrowId"  db:"escrow_id"`
	CompanyID *string         `json:"companyId" db:"company_id"`
	Amount    decimal.Decimal `json:"amount"    db:"amount"`
	Currency  string          `json:"currency"  db:"currency"`
	RiskScore int             `json:"riskScore" db:"risk_score"`
	RiskLevel RiskLevel       `json:"riskLevel" db:"risk_level"`
	Decision  Decision        `json:"decision"  db:"decision"`
	Reason    string          `json:"reason"    db:"reason"`
	Metadata  Metadata        `json:"metadata"  db:"metadata"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// AMLFilter narrows compliance listings. Zero values mean "any".
type AMLFilter struct {
	Decision Decision
	EscrowID *uuid.UUID
	Limit    int
	Offset   int
}
