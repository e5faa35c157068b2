package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// EscrowRepository handles all database operations for the escrows table.
// Rows are never deleted.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository creates a new EscrowRepository.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create inserts a new escrow row.
func (r *EscrowRepository) Create(ctx context.Context, e *domain.Escrow) error {
	query := `
		INSERT INTO escrows
			(id, deal_id, payer_company_id, payee_company_id, amount, currency, status,
			 payment_provider, provider_reference, created_at, updated_at)
		VALUES
			(:id, :deal_id, :payer_company_id, :payee_company_id, :amount, :currency, :status,
			 :payment_provider, :provider_reference, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return wrapErr("escrow_repo.Create", err)
	}
	return nil
}

// GetByID fetches a single escrow without locking it.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	var e domain.Escrow
	err := r.db.GetContext(ctx, &e, `SELECT * FROM escrows WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, wrapErr("escrow_repo.GetByID", err)
	}
	return &e, nil
}

// GetForUpdate fetches the escrow and takes a row lock held until tx ends,
// serialising concurrent settlements of the same escrow.
func (r *EscrowRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Escrow, error) {
	var e domain.Escrow
	err := tx.GetContext(ctx, &e, `SELECT * FROM escrows WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, wrapErr("escrow_repo.GetForUpdate", err)
	}
	return &e, nil
}

// UpdateStatus moves the escrow from one status to another inside tx. The
// WHERE status guard makes a stale transition affect zero rows, which is
// reported as domain.ErrInvalidTransition.
func (r *EscrowRepository) UpdateStatus(
	ctx context.Context,
	tx *sqlx.Tx,
	id uuid.UUID,
	from, to domain.EscrowStatus,
	at time.Time,
) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE escrows
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(to), at, id, string(from))
	if err != nil {
		return wrapErr("escrow_repo.UpdateStatus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("escrow_repo.UpdateStatus rows", err)
	}
	if n == 0 {
		return fmt.Errorf("escrow_repo.UpdateStatus: %w: %s is no longer %s", domain.ErrInvalidTransition, id, from)
	}
	return nil
}

// List returns escrows newest first.
func (r *EscrowRepository) List(ctx context.Context, limit, offset int) ([]*domain.Escrow, error) {
	escrows := []*domain.Escrow{}
	err := r.db.SelectContext(ctx, &escrows, `
		SELECT * FROM escrows
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, wrapErr("escrow_repo.List", err)
	}
	return escrows, nil
}
