package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradeloop/escrowgate/internal/domain"
)

func TestCreate_Validation(t *testing.T) {
	valid := domain.CreateEscrowRequest{
		DealID:         "D-1",
		PayerCompanyID: "C-1",
		PayeeCompanyID: "C-2",
		Amount:         decimal.NewFromInt(100),
		Currency:       "USD",
	}

	cases := []struct {
		name   string
		mutate func(r *domain.CreateEscrowRequest)
	}{
		{"missing deal", func(r *domain.CreateEscrowRequest) { r.DealID = "  " }},
		{"missing payer", func(r *domain.CreateEscrowRequest) { r.PayerCompanyID = "" }},
		{"missing payee", func(r *domain.CreateEscrowRequest) { r.PayeeCompanyID = "" }},
		{"same party", func(r *domain.CreateEscrowRequest) { r.PayeeCompanyID = r.PayerCompanyID }},
		{"zero amount", func(r *domain.CreateEscrowRequest) { r.Amount = decimal.Zero }},
		{"negative amount", func(r *domain.CreateEscrowRequest) { r.Amount = decimal.NewFromInt(-5) }},
		{"bad currency", func(r *domain.CreateEscrowRequest) { r.Currency = "US" }},
		{"non-letter currency", func(r *domain.CreateEscrowRequest) { r.Currency = "U$D" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			req := valid
			tc.mutate(&req)

			_, err := env.ledger.Create(context.Background(), testActor, req)
			require.ErrorIs(t, err, domain.ErrValidation)

			list, err := env.mem.ListEscrows(context.Background(), 10, 0)
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Empty(t, env.pub.actions())
		})
	}
}

func TestCreate_Defaults(t *testing.T) {
	env := newTestEnv(t, nil)

	e, err := env.ledger.Create(context.Background(), testActor, domain.CreateEscrowRequest{
		DealID:         " D-9 ",
		PayerCompanyID: "C-1",
		PayeeCompanyID: "C-2",
		Amount:         decimal.RequireFromString("1500.25"),
	})
	require.NoError(t, err)

	assert.Equal(t, "D-9", e.DealID)
	assert.Equal(t, domain.EscrowCreated, e.Status)
	assert.Equal(t, "USD", e.Currency)
	assert.Equal(t, "manual", e.PaymentProvider)
	assert.True(t, strings.HasPrefix(e.ProviderReference, "esc_"), e.ProviderReference)
	assert.Len(t, e.ProviderReference, len("esc_")+32)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	stored, err := env.ledger.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(e.Amount))

	require.Equal(t, []domain.AuditAction{domain.ActionEscrowCreated}, env.pub.actions())
	ev := env.pub.events[0]
	assert.Equal(t, e.ID.String(), ev.ResourceID)
	assert.Equal(t, "escrow", ev.ResourceType)
	assert.Equal(t, "1500.25", ev.Metadata["amount"])
	assert.Equal(t, testActor, ev.Actor)
}

func TestCreate_ProviderReferencesAreUnique(t *testing.T) {
	env := newTestEnv(t, nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		e := env.createEscrow(t, "10")
		require.False(t, seen[e.ProviderReference], "duplicate reference %s", e.ProviderReference)
		seen[e.ProviderReference] = true
	}
}

func TestCreate_ExplicitProvider(t *testing.T) {
	env := newTestEnv(t, nil)
	e, err := env.ledger.Create(context.Background(), testActor, domain.CreateEscrowRequest{
		DealID: "D-1", PayerCompanyID: "C-1", PayeeCompanyID: "C-2",
		Amount: decimal.NewFromInt(10), Currency: "eur", PaymentProvider: "stripe",
	})
	require.NoError(t, err)
	assert.Equal(t, "stripe", e.PaymentProvider)
	assert.Equal(t, "EUR", e.Currency)
}

// ── Ungated ledger operations ─────────────────────────────────────────────────

func TestLedger_FundReleaseWithoutScreening(t *testing.T) {
	env := newTestEnv(t, nil)
	e := env.createEscrow(t, "2000000") // would be blocked by the gate
	ctx := context.Background()

	funded, err := env.ledger.Fund(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowFunded, funded.Status)

	released, err := env.ledger.Release(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowReleased, released.Status)

	assert.Len(t, env.paymentsFor(t, e.ID), 2)
	assert.Empty(t, env.checksFor(t, e.ID))
}

func TestLedger_IllegalTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	e := env.createEscrow(t, "10")
	ctx := context.Background()

	_, err := env.ledger.Release(ctx, e.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.ledger.Fund(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrEscrowNotFound)
	assert.Empty(t, env.paymentsFor(t, e.ID))
}

// ── Queries ───────────────────────────────────────────────────────────────────

func TestLedger_ListNewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, env.createEscrow(t, "10").ID)
	}

	list, err := env.ledger.List(context.Background(), 3, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID)
	assert.Equal(t, ids[2], list[2].ID)

	rest, err := env.ledger.List(context.Background(), 3, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[0], rest[1].ID)
}

func TestLedger_ListTransactions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.createEscrow(t, "10")
	b := env.createEscrow(t, "20")
	_, err := env.settlement.Fund(ctx, testActor, a.ID)
	require.NoError(t, err)
	_, err = env.settlement.Fund(ctx, testActor, b.ID)
	require.NoError(t, err)

	all, err := env.ledger.ListTransactions(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, *all[0].EscrowID)

	forA, err := env.ledger.ListTransactionsForEscrow(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, a.ID, *forA[0].EscrowID)

	_, err = env.ledger.ListTransactionsForEscrow(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrEscrowNotFound)
}

func TestLedger_GetUnknown(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.ledger.Get(context.Background(), uuid.New())
	assert.True(t, domain.IsNotFound(err))
}
