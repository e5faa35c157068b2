package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/repository"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

var escrowColumns = []string{
	"id", "deal_id", "payer_company_id", "payee_company_id", "amount", "currency", "status",
	"payment_provider", "provider_reference", "created_at", "updated_at",
}

var amlColumns = []string{
	"id", "deal_id", "escrow_id", "company_id", "amount", "currency", "risk_score", "risk_level",
	"decision", "reason", "metadata", "created_at",
}

func newMockStore(t *testing.T) (*repository.SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLStore(sqlx.NewDb(db, "postgres")), mock
}

func escrowRow(id uuid.UUID, status domain.EscrowStatus) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(escrowColumns).AddRow(
		id.String(), "D-1", "C-1", "C-2", "45000.00", "USD", string(status),
		"manual", "esc_0123", now, now,
	)
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

const lockQuery = `SELECT * FROM escrows WHERE id = $1 FOR UPDATE`

// ── RunInTx ───────────────────────────────────────────────────────────────────

func TestSQLStore_RunInTx_CommitsTransition(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL statement_timeout = \d+`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q(lockQuery)).WithArgs(id).WillReturnRows(escrowRow(id, domain.EscrowCreated))
	mock.ExpectExec(`UPDATE escrows\s+SET status = \$1, updated_at = \$2\s+WHERE id = \$3 AND status = \$4`).
		WithArgs("FUNDED", sqlmock.AnyArg(), id, "CREATED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.RunInTx(ctx, func(tx repository.Tx) error {
		e, err := tx.LockEscrow(ctx, id)
		if err != nil {
			return err
		}
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(45000)))
		now := time.Now().UTC()
		if err := tx.UpdateEscrowStatus(ctx, id, domain.EscrowCreated, domain.EscrowFunded, now); err != nil {
			return err
		}
		return tx.AppendPayment(ctx, domain.NewSettlementPayment(e, domain.OpFund, now))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_RunInTx_NoDeadlineSkipsStatementTimeout(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.RunInTx(context.Background(), func(repository.Tx) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_LockMissingEscrow_NotFoundAndRollback(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockQuery)).WithArgs(id).WillReturnRows(sqlmock.NewRows(escrowColumns))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx repository.Tx) error {
		_, err := tx.LockEscrow(context.Background(), id)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrEscrowNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_StaleStatus_InvalidTransitionAndRollback(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE escrows`).
		WithArgs("FUNDED", sqlmock.AnyArg(), id, "CREATED").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx repository.Tx) error {
		return tx.UpdateEscrowStatus(context.Background(), id, domain.EscrowCreated, domain.EscrowFunded, time.Now())
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A blocked settlement writes the AML check and nothing else, then commits.
func TestSQLStore_BlockedAttemptCommitsOnlyAMLCheck(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q(lockQuery)).WithArgs(id).WillReturnRows(escrowRow(id, domain.EscrowCreated))
	mock.ExpectExec(`INSERT INTO aml_checks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTx(context.Background(), func(tx repository.Tx) error {
		e, err := tx.LockEscrow(context.Background(), id)
		if err != nil {
			return err
		}
		a := domain.Assess(decimal.NewFromInt(1_200_000), "USD", domain.DefaultThresholdTable())
		require.Equal(t, domain.DecisionBlock, a.Decision)
		return tx.InsertAMLCheck(context.Background(), &domain.AMLCheck{
			ID:        uuid.New(),
			EscrowID:  &e.ID,
			Amount:    decimal.NewFromInt(1_200_000),
			Currency:  "USD",
			RiskScore: a.Score,
			RiskLevel: a.Level,
			Decision:  a.Decision,
			Reason:    a.Reason,
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no status update or payment insert may run")
}

// ── Error translation ─────────────────────────────────────────────────────────

func TestSQLStore_ErrorTranslation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"statement timeout", &pq.Error{Code: "57014"}, domain.ErrTimeout},
		{"context deadline", context.DeadlineExceeded, domain.ErrTimeout},
		{"unique violation", &pq.Error{Code: "23505"}, domain.ErrStorage},
		{"connection reset", errors.New("connection reset by peer"), domain.ErrStorage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			id := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery(q(lockQuery)).WithArgs(id).WillReturnError(tc.err)
			mock.ExpectRollback()

			err := s.RunInTx(context.Background(), func(tx repository.Tx) error {
				_, err := tx.LockEscrow(context.Background(), id)
				return err
			})
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, tc.err, "driver error stays in the chain")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLStore_GetEscrow_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(q(`SELECT * FROM escrows WHERE id = $1`)).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(escrowColumns))

	_, err := s.GetEscrow(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrEscrowNotFound)
}

// ── AML listing ───────────────────────────────────────────────────────────────

func TestSQLStore_ListAMLChecks_PlaceholderNumbering(t *testing.T) {
	escrowID := uuid.New()
	const order = ` ORDER BY created_at DESC, id DESC`

	cases := []struct {
		name   string
		filter domain.AMLFilter
		query  string
		args   []driver.Value
	}{
		{
			name:   "no filter",
			filter: domain.AMLFilter{Limit: 10, Offset: 20},
			query:  `SELECT * FROM aml_checks` + order + ` LIMIT $1 OFFSET $2`,
			args:   []driver.Value{10, 20},
		},
		{
			name:   "decision only",
			filter: domain.AMLFilter{Decision: domain.DecisionBlock, Limit: 10},
			query:  `SELECT * FROM aml_checks WHERE decision = $1` + order + ` LIMIT $2 OFFSET $3`,
			args:   []driver.Value{"BLOCK", 10, 0},
		},
		{
			name:   "escrow only",
			filter: domain.AMLFilter{EscrowID: &escrowID, Limit: 5},
			query:  `SELECT * FROM aml_checks WHERE escrow_id = $1` + order + ` LIMIT $2 OFFSET $3`,
			args:   []driver.Value{escrowID, 5, 0},
		},
		{
			name:   "both",
			filter: domain.AMLFilter{Decision: domain.DecisionReview, EscrowID: &escrowID, Limit: 5, Offset: 5},
			query:  `SELECT * FROM aml_checks WHERE decision = $1 AND escrow_id = $2` + order + ` LIMIT $3 OFFSET $4`,
			args:   []driver.Value{"REVIEW", escrowID, 5, 5},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectQuery("^" + q(tc.query) + "$").WithArgs(tc.args...).
				WillReturnRows(sqlmock.NewRows(amlColumns).AddRow(
					uuid.NewString(), nil, escrowID.String(), nil, "150000", "USD", int64(45), "LOW",
					"PASS", domain.ReasonMonitor, []byte(`{"operation":"FUND"}`), time.Now().UTC(),
				))

			checks, err := s.ListAMLChecks(context.Background(), tc.filter)
			require.NoError(t, err)
			require.Len(t, checks, 1)
			assert.Equal(t, "FUND", checks[0].Metadata["operation"])
			assert.Nil(t, checks[0].DealID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
