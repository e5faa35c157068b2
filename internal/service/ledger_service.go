package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/metrics"
	"github.com/tradeloop/escrowgate/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// LedgerService
// ──────────────────────────────────────────────────────────────────────────────

// LedgerService owns escrow records and the append-only payment trail.
// Fund and Release here are the raw, ungated ledger operations; HTTP traffic
// goes through SettlementService, which runs the AML gate first.
type LedgerService struct {
	store     repository.Store
	cfg       config.SettlementConfig
	publisher audit.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(
	store repository.Store,
	cfg config.SettlementConfig,
	publisher audit.Publisher,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		store:     store,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

// Create validates req and stores a new escrow in CREATED status with a
// fresh provider reference. No money moves and no AML check is run.
func (s *LedgerService) Create(ctx context.Context, actor domain.Actor, req domain.CreateEscrowRequest) (*domain.Escrow, error) {
	req.DealID = strings.TrimSpace(req.DealID)
	req.PayerCompanyID = strings.TrimSpace(req.PayerCompanyID)
	req.PayeeCompanyID = strings.TrimSpace(req.PayeeCompanyID)
	req.Currency = domain.NormalizeCurrency(req.Currency)
	req.PaymentProvider = strings.TrimSpace(req.PaymentProvider)

	switch {
	case req.DealID == "":
		return nil, domain.NewValidationError("dealId is required")
	case req.PayerCompanyID == "":
		return nil, domain.NewValidationError("payerCompanyId is required")
	case req.PayeeCompanyID == "":
		return nil, domain.NewValidationError("payeeCompanyId is required")
	case req.PayerCompanyID == req.PayeeCompanyID:
		return nil, domain.NewValidationError("payer and payee must be different companies")
	case !req.Amount.IsPositive():
		return nil, domain.NewValidationError("amount must be greater than zero")
	case !isCurrencyCode(req.Currency):
		return nil, domain.NewValidationError("currency must be a 3-letter ISO 4217 code")
	}
	if req.PaymentProvider == "" {
		req.PaymentProvider = s.cfg.DefaultProvider
	}

	now := s.now()
	e := &domain.Escrow{
		ID:                uuid.New(),
		DealID:            req.DealID,
		PayerCompanyID:    req.PayerCompanyID,
		PayeeCompanyID:    req.PayeeCompanyID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            domain.EscrowCreated,
		PaymentProvider:   req.PaymentProvider,
		ProviderReference: s.newProviderReference(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateEscrow(ctx, e); err != nil {
		return nil, fmt.Errorf("ledger_service.Create: %w", err)
	}

	metrics.EscrowsCreated.WithLabelValues(e.Currency).Inc()
	s.logger.Info("escrow created",
		"escrow_id", e.ID, "deal_id", e.DealID, "amount", e.Amount.String(), "currency", e.Currency)
	s.emit(ctx, domain.NewEscrowAuditEvent(actor, domain.ActionEscrowCreated, e, now))
	return e, nil
}

// newProviderReference returns "<prefix>_<32 hex chars>".
func (s *LedgerService) newProviderReference() string {
	prefix := s.cfg.ProviderRefPrefix
	if prefix == "" {
		prefix = "esc"
	}
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ungated transitions
// ──────────────────────────────────────────────────────────────────────────────

// Fund moves a CREATED escrow to FUNDED and records the payer's OUT payment.
func (s *LedgerService) Fund(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	return s.transition(ctx, id, domain.OpFund)
}

// Release moves a FUNDED escrow to RELEASED and records the payee's IN payment.
func (s *LedgerService) Release(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	return s.transition(ctx, id, domain.OpRelease)
}

func (s *LedgerService) transition(ctx context.Context, id uuid.UUID, op domain.SettlementOp) (*domain.Escrow, error) {
	var out *domain.Escrow
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		e, err := tx.LockEscrow(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.ApplyTransition(ctx, tx, e, op, s.now()); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger_service.%s: %w", strings.ToLower(string(op)), classify(err))
	}
	return out, nil
}

// ApplyTransition performs op on the locked escrow e inside tx: it checks the
// transition, updates the status and appends the matching payment row. e is
// updated in place. Nothing is visible until the caller commits tx.
func (s *LedgerService) ApplyTransition(
	ctx context.Context,
	tx repository.Tx,
	e *domain.Escrow,
	op domain.SettlementOp,
	at time.Time,
) (*domain.PaymentTransaction, error) {
	from := e.Status
	next := *e
	if err := next.TransitionTo(op.TargetStatus(), at); err != nil {
		return nil, err
	}
	if err := tx.UpdateEscrowStatus(ctx, e.ID, from, next.Status, at); err != nil {
		return nil, err
	}
	p := domain.NewSettlementPayment(&next, op, at)
	if err := tx.AppendPayment(ctx, p); err != nil {
		return nil, err
	}
	*e = next
	return p, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Get returns one escrow by id.
func (s *LedgerService) Get(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.Get: %w", err)
	}
	return e, nil
}

// List returns escrows newest first.
func (s *LedgerService) List(ctx context.Context, limit, offset int) ([]*domain.Escrow, error) {
	limit, offset = clampPage(limit, offset)
	list, err := s.store.ListEscrows(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.List: %w", err)
	}
	return list, nil
}

// ListTransactions returns payment rows newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, limit, offset int) ([]*domain.PaymentTransaction, error) {
	limit, offset = clampPage(limit, offset)
	list, err := s.store.ListPayments(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.ListTransactions: %w", err)
	}
	return list, nil
}

// ListTransactionsForEscrow returns the payment trail of one escrow, newest
// first. An unknown escrow yields ErrEscrowNotFound.
func (s *LedgerService) ListTransactionsForEscrow(ctx context.Context, id uuid.UUID) ([]*domain.PaymentTransaction, error) {
	if _, err := s.store.GetEscrow(ctx, id); err != nil {
		return nil, fmt.Errorf("ledger_service.ListTransactionsForEscrow: %w", err)
	}
	list, err := s.store.ListPaymentsByEscrow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger_service.ListTransactionsForEscrow: %w", err)
	}
	return list, nil
}

// emit publishes ev after a commit.
func (s *LedgerService) emit(ctx context.Context, ev domain.AuditEvent) {
	publishAudit(ctx, s.publisher, s.logger, ev)
}
