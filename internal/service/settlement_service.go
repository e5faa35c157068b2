package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/metrics"
	"github.com/tradeloop/escrowgate/internal/repository"
)

// SettlementResult is returned by a successful fund or release.
type SettlementResult struct {
	Escrow  *domain.Escrow
	Payment *domain.PaymentTransaction
	AML     *domain.AMLCheck
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService runs the compliance-gated fund and release operations.
// The escrow row lock, the AML check, the status change and the payment row
// share one transaction, so concurrent requests on the same escrow serialise
// and at most one of them moves money.
type SettlementService struct {
	store     repository.Store
	ledger    *LedgerService
	aml       *AMLService
	policy    domain.GatePolicy
	publisher audit.Publisher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSettlementService creates a SettlementService with the default gate
// policy (proceed unless BLOCK).
func NewSettlementService(
	store repository.Store,
	ledger *LedgerService,
	aml *AMLService,
	publisher audit.Publisher,
	cfg config.SettlementConfig,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		store:     store,
		ledger:    ledger,
		aml:       aml,
		policy:    domain.PermitUnlessBlocked,
		publisher: publisher,
		timeout:   cfg.Timeout,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetPolicy replaces the gate policy, e.g. to hold REVIEW decisions.
func (s *SettlementService) SetPolicy(p domain.GatePolicy) { s.policy = p }

// Fund moves the escrow from CREATED to FUNDED after the AML gate passes.
func (s *SettlementService) Fund(ctx context.Context, actor domain.Actor, id uuid.UUID) (*SettlementResult, error) {
	return s.settle(ctx, actor, id, domain.OpFund)
}

// Release moves the escrow from FUNDED to RELEASED after the AML gate passes.
func (s *SettlementService) Release(ctx context.Context, actor domain.Actor, id uuid.UUID) (*SettlementResult, error) {
	return s.settle(ctx, actor, id, domain.OpRelease)
}

// settle is the shared orchestration. Outcomes:
//   - unknown escrow: ErrEscrowNotFound, nothing written
//   - illegal transition: ErrInvalidTransition, nothing written
//   - gate refuses: *ComplianceBlockedError, only the AML check is committed
//   - otherwise: AML check, status change and payment committed together
func (s *SettlementService) settle(ctx context.Context, actor domain.Actor, id uuid.UUID, op domain.SettlementOp) (_ *SettlementResult, err error) {
	start := time.Now()
	defer func() {
		metrics.SettlementDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
		metrics.SettlementOutcomes.WithLabelValues(string(op), outcomeOf(err)).Inc()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// ── 1. Resolve the escrow before writing anything ────────────────────────
	if _, err = s.store.GetEscrow(ctx, id); err != nil {
		return nil, s.fail(op, id, err)
	}

	// ── 2. Lock, evaluate, gate and apply in one unit of work ────────────────
	var (
		result  SettlementResult
		blocked *domain.ComplianceBlockedError
	)
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		e, err := tx.LockEscrow(ctx, id)
		if err != nil {
			return err
		}
		target := op.TargetStatus()
		if !e.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s escrow cannot move to %s", domain.ErrInvalidTransition, e.Status, target)
		}

		escrowID := e.ID
		check, err := s.aml.Evaluate(ctx, tx, AMLInput{
			DealID:    e.DealID,
			EscrowID:  &escrowID,
			CompanyID: e.PartyFor(op),
			Amount:    e.Amount,
			Currency:  e.Currency,
			Metadata:  domain.Metadata{"operation": string(op)},
		})
		if err != nil {
			return err
		}
		result.AML = check
		result.Escrow = e

		if !s.policy.Permits(check.Decision) {
			// Commit the check alone so the refusal stays on record.
			blocked = &domain.ComplianceBlockedError{Op: op, Check: check}
			return nil
		}

		payment, err := s.ledger.ApplyTransition(ctx, tx, e, op, s.now())
		if err != nil {
			return err
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, s.fail(op, id, err)
	}

	metrics.AMLDecisions.WithLabelValues(string(result.AML.Decision), string(op)).Inc()

	// ── 3. Gate refused ──────────────────────────────────────────────────────
	if blocked != nil {
		s.logger.Info("settlement blocked by aml",
			"op", op, "escrow_id", id, "check_id", blocked.Check.ID,
			"score", blocked.Check.RiskScore, "reason", blocked.Check.Reason)
		err = blocked
		return nil, err
	}

	// ── 4. Post-commit side effects ──────────────────────────────────────────
	s.logger.Info("settlement applied",
		"op", op, "escrow_id", id, "status", result.Escrow.Status,
		"payment_id", result.Payment.ID, "aml_decision", result.AML.Decision)
	publishAudit(ctx, s.publisher, s.logger, domain.NewEscrowAuditEvent(actor, op.AuditAction(), result.Escrow, result.Payment.CreatedAt))

	return &result, nil
}

// fail classifies err and logs unexpected failures.
func (s *SettlementService) fail(op domain.SettlementOp, id uuid.UUID, err error) error {
	err = classify(err)
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrTimeout) {
		s.logger.Error("settlement failed", "op", op, "escrow_id", id, "error", err)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, domain.ErrComplianceBlocked):
		return metrics.OutcomeBlocked
	case errors.Is(err, domain.ErrEscrowNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return metrics.OutcomeConflict
	case errors.Is(err, domain.ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}
