package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces consumed by the service layer
// ──────────────────────────────────────────────────────────────────────────────

// AMLWriter persists AML checks. Both Store and Tx satisfy it so a check can
// be written standalone or as part of a settlement transaction.
type AMLWriter interface {
	InsertAMLCheck(ctx context.Context, c *domain.AMLCheck) error
}

// Tx is one unit of work. Writes become visible only when the function
// passed to Store.RunInTx returns nil.
type Tx interface {
	AMLWriter

	// LockEscrow loads the escrow and holds it exclusively until the unit of
	// work ends.
	LockEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error)

	// UpdateEscrowStatus changes status only if it still equals from;
	// otherwise it returns domain.ErrInvalidTransition.
	UpdateEscrowStatus(ctx context.Context, id uuid.UUID, from, to domain.EscrowStatus, at time.Time) error

	AppendPayment(ctx context.Context, p *domain.PaymentTransaction) error
}

// Store is the persistence surface of the escrow, payment and AML tables.
type Store interface {
	AMLWriter

	CreateEscrow(ctx context.Context, e *domain.Escrow) error
	GetEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error)
	ListEscrows(ctx context.Context, limit, offset int) ([]*domain.Escrow, error)

	ListPayments(ctx context.Context, limit, offset int) ([]*domain.PaymentTransaction, error)
	ListPaymentsByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*domain.PaymentTransaction, error)

	ListAMLChecks(ctx context.Context, f domain.AMLFilter) ([]*domain.AMLCheck, error)

	// RunInTx runs fn in a single transaction; a non-nil return rolls back.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// ──────────────────────────────────────────────────────────────────────────────
// SQLStore — PostgreSQL implementation
// ──────────────────────────────────────────────────────────────────────────────

// SQLStore implements Store over PostgreSQL through sqlx.
type SQLStore struct {
	db       *sqlx.DB
	escrows  *EscrowRepository
	payments *PaymentRepository
	aml      *AMLRepository
}

// NewSQLStore creates a SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:       db,
		escrows:  NewEscrowRepository(db),
		payments: NewPaymentRepository(db),
		aml:      NewAMLRepository(db),
	}
}

func (s *SQLStore) CreateEscrow(ctx context.Context, e *domain.Escrow) error {
	return s.escrows.Create(ctx, e)
}

func (s *SQLStore) GetEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	return s.escrows.GetByID(ctx, id)
}

func (s *SQLStore) ListEscrows(ctx context.Context, limit, offset int) ([]*domain.Escrow, error) {
	return s.escrows.List(ctx, limit, offset)
}

func (s *SQLStore) ListPayments(ctx context.Context, limit, offset int) ([]*domain.PaymentTransaction, error) {
	return s.payments.List(ctx, limit, offset)
}

func (s *SQLStore) ListPaymentsByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	return s.payments.ListByEscrow(ctx, escrowID)
}

func (s *SQLStore) InsertAMLCheck(ctx context.Context, c *domain.AMLCheck) error {
	return s.aml.Insert(ctx, s.db, c)
}

func (s *SQLStore) ListAMLChecks(ctx context.Context, f domain.AMLFilter) ([]*domain.AMLCheck, error) {
	return s.aml.List(ctx, f)
}

// RunInTx begins a transaction, bounds every statement by the context
// deadline, and commits only if fn succeeds.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr("store.RunInTx begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		ms := time.Until(deadline).Milliseconds()
		if ms < 1 {
			ms = 1
		}
		// SET does not accept bind parameters.
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)); err != nil {
			return wrapErr("store.RunInTx statement_timeout", err)
		}
	}

	if err = fn(&sqlTx{tx: tx, store: s}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return wrapErr("store.RunInTx commit", err)
	}
	return nil
}

// sqlTx adapts *sqlx.Tx to the Tx interface.
type sqlTx struct {
	tx    *sqlx.Tx
	store *SQLStore
}

func (t *sqlTx) LockEscrow(ctx context.Context, id uuid.UUID) (*domain.Escrow, error) {
	return t.store.escrows.GetForUpdate(ctx, t.tx, id)
}

func (t *sqlTx) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, from, to domain.EscrowStatus, at time.Time) error {
	return t.store.escrows.UpdateStatus(ctx, t.tx, id, from, to, at)
}

func (t *sqlTx) AppendPayment(ctx context.Context, p *domain.PaymentTransaction) error {
	return t.store.payments.Append(ctx, t.tx, p)
}

func (t *sqlTx) InsertAMLCheck(ctx context.Context, c *domain.AMLCheck) error {
	return t.store.aml.Insert(ctx, t.tx, c)
}

// ──────────────────────────────────────────────────────────────────────────────
// Error translation
// ──────────────────────────────────────────────────────────────────────────────

// pgQueryCanceled is SQLSTATE 57014, raised when statement_timeout fires.
const pgQueryCanceled = "57014"

// wrapErr tags a driver error as domain.ErrTimeout or domain.ErrStorage,
// keeping the original error in the chain.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgQueryCanceled {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
