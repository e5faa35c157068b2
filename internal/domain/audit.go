package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actor identifies who triggered an operation. It is passed explicitly from
// the transport layer so services never read request-scoped globals.
type Actor struct {
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId,omitempty"`
	Role      string `json:"role,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// AuditAction names an audited business action.
type AuditAction string

const (
	ActionEscrowCreated  AuditAction = "ESCROW_CREATED"
	ActionEscrowFunded   AuditAction = "ESCROW_FUNDED"
	ActionEscrowReleased AuditAction = "ESCROW_RELEASED"
)

// AuditEvent is emitted to the audit-log side channel after a committed
// change. The service does not own its storage.
type AuditEvent struct {
	ID           uuid.UUID   `json:"id"`
	Actor        Actor       `json:"actor"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resourceType"`
	ResourceID   string      `json:"resourceId"`
	Metadata     Metadata    `json:"metadata"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

// NewEscrowAuditEvent builds the event for action on e, carrying
// {amount, currency} as metadata.
func NewEscrowAuditEvent(actor Actor, action AuditAction, e *Escrow, at time.Time) AuditEvent {
	return AuditEvent{
		ID:           uuid.New(),
		Actor:        actor,
		Action:       action,
		ResourceType: "escrow",
		ResourceID:   e.ID.String(),
		Metadata: Metadata{
			"amount":   e.Amount.String(),
			"currency": e.Currency,
		},
		OccurredAt: at,
	}
}
