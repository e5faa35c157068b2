package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/metrics"
	"github.com/tradeloop/escrowgate/internal/repository"
)

// AMLInput describes a proposed money movement to be scored.
type AMLInput struct {
	DealID    string
	EscrowID  *uuid.UUID
	CompanyID string
	Amount    decimal.Decimal
	Currency  string
	Metadata  domain.Metadata
}

// AMLService scores proposed money movements and records every evaluation.
// Scoring itself is domain.Assess; this service adds the audit write.
type AMLService struct {
	store      repository.Store
	thresholds domain.ThresholdTable
	logger     *slog.Logger
	now        func() time.Time
}

// NewAMLService creates an AMLService.
func NewAMLService(store repository.Store, thresholds domain.ThresholdTable, logger *slog.Logger) *AMLService {
	return &AMLService{
		store:      store,
		thresholds: thresholds,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate scores in and writes exactly one AMLCheck through w, whatever the
// decision. The returned check is the persisted record. A write failure is
// returned and must abort any enclosing settlement.
func (s *AMLService) Evaluate(ctx context.Context, w repository.AMLWriter, in AMLInput) (*domain.AMLCheck, error) {
	currency := domain.NormalizeCurrency(in.Currency)
	a := domain.Assess(in.Amount, currency, s.thresholds)

	check := &domain.AMLCheck{
		ID:        uuid.New(),
		DealID:    optional(in.DealID),
		EscrowID:  in.EscrowID,
		CompanyID: optional(in.CompanyID),
		Amount:    in.Amount,
		Currency:  currency,
		RiskScore: a.Score,
		RiskLevel: a.Level,
		Decision:  a.Decision,
		Reason:    a.Reason,
		Metadata:  in.Metadata.Clone(),
		CreatedAt: s.now(),
	}
	if err := w.InsertAMLCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("aml_service.Evaluate: %w", err)
	}
	return check, nil
}

// Screen runs a standalone check outside any settlement, e.g. before a deal
// is proposed. The check is persisted like any other.
func (s *AMLService) Screen(ctx context.Context, actor domain.Actor, in AMLInput) (*domain.AMLCheck, error) {
	if in.Amount.IsNegative() {
		return nil, domain.NewValidationError("amount must not be negative")
	}
	if !isCurrencyCode(domain.NormalizeCurrency(in.Currency)) {
		return nil, domain.NewValidationError("currency must be a 3-letter ISO 4217 code")
	}
	if in.EscrowID != nil {
		if _, err := s.store.GetEscrow(ctx, *in.EscrowID); err != nil {
			return nil, fmt.Errorf("aml_service.Screen: %w", err)
		}
	}

	meta := in.Metadata.Clone()
	meta["operation"] = "SCREEN"
	if actor.UserID != "" {
		meta["requestedBy"] = actor.UserID
	}
	in.Metadata = meta

	check, err := s.Evaluate(ctx, s.store, in)
	if err != nil {
		return nil, err
	}
	metrics.AMLDecisions.WithLabelValues(string(check.Decision), "SCREEN").Inc()
	s.logger.Info("aml screen recorded",
		"check_id", check.ID, "decision", check.Decision, "score", check.RiskScore)
	return check, nil
}

// List returns recorded checks newest first.
func (s *AMLService) List(ctx context.Context, f domain.AMLFilter) ([]*domain.AMLCheck, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	checks, err := s.store.ListAMLChecks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("aml_service.List: %w", err)
	}
	return checks, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
