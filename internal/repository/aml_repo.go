package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// AMLRepository persists AML check records. Checks are immutable once
// written.
type AMLRepository struct {
	db *sqlx.DB
}

// NewAMLRepository creates a new AMLRepository.
func NewAMLRepository(db *sqlx.DB) *AMLRepository {
	return &AMLRepository{db: db}
}

// Insert writes c through e, which is either the pool or an open transaction.
func (r *AMLRepository) Insert(ctx context.Context, e sqlx.ExtContext, c *domain.AMLCheck) error {
	query := `
		INSERT INTO aml_checks
			(id, deal_id, escrow_id, company_id, amount, currency, risk_score, risk_level,
			 decision, reason, metadata, created_at)
		VALUES
			(:id, :deal_id, :escrow_id, :company_id, :amount, :currency, :risk_score, :risk_level,
			 :decision, :reason, :metadata, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, e, query, c); err != nil {
		return wrapErr("aml_repo.Insert", err)
	}
	return nil
}

// List returns checks newest first, optionally filtered by decision and
// escrow.
func (r *AMLRepository) List(ctx context.Context, f domain.AMLFilter) ([]*domain.AMLCheck, error) {
	var (
		where []string
		args  []any
	)
	if f.Decision != "" {
		args = append(args, string(f.Decision))
		where = append(where, fmt.Sprintf("decision = $%d", len(args)))
	}
	if f.EscrowID != nil {
		args = append(args, *f.EscrowID)
		where = append(where, fmt.Sprintf("escrow_id = $%d", len(args)))
	}

	query := `SELECT * FROM aml_checks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	checks := []*domain.AMLCheck{}
	if err := r.db.SelectContext(ctx, &checks, query, args...); err != nil {
		return nil, wrapErr("aml_repo.List", err)
	}
	return checks, nil
}
