package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// PaymentRepository appends to and reads the payments trail. There is no
// update or delete path.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Append inserts a payment row inside tx.
func (r *PaymentRepository) Append(ctx context.Context, tx *sqlx.Tx, p *domain.PaymentTransaction) error {
	query := `
		INSERT INTO payments
			(id, escrow_id, deal_id, company_id, amount, currency, direction, status,
			 provider, provider_reference, metadata, created_at)
		VALUES
			(:id, :escrow_id, :deal_id, :company_id, :amount, :currency, :direction, :status,
			 :provider, :provider_reference, :metadata, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return wrapErr("payment_repo.Append", err)
	}
	return nil
}

// List returns payments newest first.
func (r *PaymentRepository) List(ctx context.Context, limit, offset int) ([]*domain.PaymentTransaction, error) {
	payments := []*domain.PaymentTransaction{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, wrapErr("payment_repo.List", err)
	}
	return payments, nil
}

// ListByEscrow returns the trail of one escrow, newest first.
func (r *PaymentRepository) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	payments := []*domain.PaymentTransaction{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE escrow_id = $1
		ORDER BY created_at DESC, id DESC`,
		escrowID)
	if err != nil {
		return nil, wrapErr("payment_repo.ListByEscrow", err)
	}
	return payments, nil
}
