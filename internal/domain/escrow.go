package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied whenever a caller omits the currency code.
const DefaultCurrency = "USD"

// ──────────────────────────────────────────────────────────────────────────────
// EscrowStatus
// ──────────────────────────────────────────────────────────────────────────────

// EscrowStatus is the lifecycle state of an escrow record.
type EscrowStatus string

const (
	EscrowCreated  EscrowStatus = "CREATED"  // recorded, no money moved yet
	EscrowFunded   EscrowStatus = "FUNDED"   // payer's funds are held
	EscrowReleased EscrowStatus = "RELEASED" // funds paid out to the payee
	EscrowRefunded EscrowStatus = "REFUNDED" // funds returned to the payer
	EscrowFailed   EscrowStatus = "FAILED"   // provider-side failure
)

// escrowTransitions is the single table of legal status changes.
// Statuses without an entry are terminal.
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowCreated: {EscrowFunded, EscrowRefunded, EscrowFailed},
	EscrowFunded:  {EscrowReleased, EscrowRefunded, EscrowFailed},
}

// IsValid reports whether s is one of the known statuses.
func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowCreated, EscrowFunded, EscrowReleased, EscrowRefunded, EscrowFailed:
		return true
	}
	return false
}

// IsTerminal returns true when no further transition is possible.
func (s EscrowStatus) IsTerminal() bool {
	_, ok := escrowTransitions[s]
	return s.IsValid() && !ok
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, allowed := range escrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementOp
// ──────────────────────────────────────────────────────────────────────────────

// SettlementOp names a money-moving operation on an escrow.
type SettlementOp string

const (
	OpFund    SettlementOp = "FUND"
	OpRelease SettlementOp = "RELEASE"
)

// TargetStatus is the escrow status the operation moves to.
func (op SettlementOp) TargetStatus() EscrowStatus {
	if op == OpRelease {
		return EscrowReleased
	}
	return EscrowFunded
}

// Direction is the payment direction recorded for the operation:
// funding debits the payer, releasing credits the payee.
func (op SettlementOp) Direction() PaymentDirection {
	if op == OpRelease {
		return DirectionIn
	}
	return DirectionOut
}

// AuditAction is the audit-log action emitted after a successful operation.
func (op SettlementOp) AuditAction() AuditAction {
	if op == OpRelease {
		return ActionEscrowReleased
	}
	return ActionEscrowFunded
}

// ──────────────────────────────────────────────────────────────────────────────
// Escrow
// ──────────────────────────────────────────────────────────────────────────────

// Escrow holds funds reserved for a deal pending release to the payee.
// Amount and Currency never change after creation.
type Escrow struct {
	ID                uuid.UUID       `json:"id"                db:"id"`
	DealID            string          `json:"dealId"            db:"deal_id"`
	PayerCompanyID    string          `json:"payerCompanyId"    db:"payer_company_id"`
	PayeeCompanyID    string          `json:"payeeCompanyId"    db:"payee_company_id"`
	Amount            decimal.Decimal `json:"amount"            db:"amount"`
	Currency          string          `json:"currency"          db:"currency"`
	Status            EscrowStatus    `json:"status"            db:"status"`
	PaymentProvider   string          `json:"paymentProvider"   db:"payment_provider"`
	ProviderReference string          `json:"providerReference" db:"provider_reference"`
	CreatedAt         time.Time       `json:"createdAt"         db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt"         db:"updated_at"`
}

// PartyFor returns the company affected by op: the payer for FUND, the payee
// for RELEASE.
func (e *Escrow) PartyFor(op SettlementOp) string {
	if op == OpRelease {
		return e.PayeeCompanyID
	}
	return e.PayerCompanyID
}

// TransitionTo moves the escrow to next, or returns ErrInvalidTransition
// leaving the escrow untouched.
func (e *Escrow) TransitionTo(next EscrowStatus, at time.Time) error {
	if !e.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, next)
	}
	e.Status = next
	e.UpdatedAt = at
	return nil
}

// CreateEscrowRequest carries the caller-supplied fields for a new escrow.
type CreateEscrowRequest struct {
	DealID          string
	PayerCompanyID  string
	PayeeCompanyID  string
	Amount          decimal.Decimal
	Currency        string
	PaymentProvider string
}
