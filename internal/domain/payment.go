package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentDirection is IN for money arriving at a company and OUT for money
// leaving it.
type PaymentDirection string

const (
	DirectionIn  PaymentDirection = "IN"
	DirectionOut PaymentDirection = "OUT"
)

// PaymentStatus is the provider-side outcome of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentTransaction is an append-only record of one directional money
// movement. Rows are never updated or deleted.
type PaymentTransaction struct {
	ID                uuid.UUID        `json:"id"                db:"id"`
	EscrowID          *uuid.UUID       `json:"escrowId"          db:"escrow_id"` // NULL for non-escrow payments
	DealID            string           `json:"dealId"            db:"deal_id"`
	CompanyID         string           `json:"companyId"         db:"company_id"`
	Amount            decimal.Decimal  `json:"amount"            db:"amount"`
	Currency          string           `json:"currency"          db:"currency"`
	Direction         PaymentDirection `json:"direction"         db:"direction"`
	Status            PaymentStatus    `json:"status"            db:"status"`
	Provider          string           `json:"provider"          db:"provider"`
	ProviderReference string           `json:"providerReference" db:"provider_reference"`
	Metadata          Metadata         `json:"metadata"          db:"metadata"`
	CreatedAt         time.Time        `json:"createdAt"         db:"created_at"`
}

// NewSettlementPayment builds the trail entry for op applied to e.
func NewSettlementPayment(e *Escrow, op SettlementOp, at time.Time) *PaymentTransaction {
	escrowID := e.ID
	return &PaymentTransaction{
		ID:                uuid.New(),
		EscrowID:          &escrowID,
		DealID:            e.DealID,
		CompanyID:         e.PartyFor(op),
		Amount:            e.Amount,
		Currency:          e.Currency,
		Direction:         op.Direction(),
		Status:            PaymentSucceeded,
		Provider:          e.PaymentProvider,
		ProviderReference: e.ProviderReference,
		Metadata:          Metadata{"operation": string(op)},
		CreatedAt:         at,
	}
}
