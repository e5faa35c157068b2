package backoffice_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/backoffice"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/repository"
	"github.com/tradeloop/escrowgate/internal/service"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

type adminEnv struct {
	h       http.Handler
	auth    *service.AuthService
	ledger  *service.LedgerService
	settler *service.SettlementService
}

func newAdminEnv(t *testing.T, allowedIPs string) *adminEnv {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "development", BackofficeAllowedIPs: allowedIPs},
		JWT:    config.JWTConfig{AccessSecret: "test-access-secret-abcdefghijklmnop"},
		AML:    config.AMLConfig{Thresholds: domain.DefaultThresholdTable()},
		Settlement: config.SettlementConfig{
			Timeout:           2 * time.Second,
			DefaultProvider:   "manual",
			ProviderRefPrefix: "esc",
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	pub := audit.NewLogPublisher(logger)

	authSvc := service.NewAuthService(cfg)
	amlSvc := service.NewAMLService(store, cfg.AML.Thresholds, logger)
	ledgerSvc := service.NewLedgerService(store, cfg.Settlement, pub, logger)
	settleSvc := service.NewSettlementService(store, ledgerSvc, amlSvc, pub, cfg.Settlement, logger)

	r := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:   authSvc,
		LedgerSvc: ledgerSvc,
		AMLSvc:    amlSvc,
		Cfg:       cfg,
	})
	return &adminEnv{h: r, auth: authSvc, ledger: ledgerSvc, settler: settleSvc}
}

func (e *adminEnv) token(t *testing.T, role domain.UserRole) string {
	t.Helper()
	tok, err := e.auth.IssueAccessToken(domain.Actor{UserID: "staff-1", Role: string(role)}, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *adminEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("invalid JSON: %v body: %s", err, rr.Body.String())
	}
	return m
}

// ── Access control ────────────────────────────────────────────────────────────

func TestAdmin_NoToken_Returns401(t *testing.T) {
	env := newAdminEnv(t, "")
	if rr := env.get(t, "/admin/dashboard", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /admin/dashboard without token = %d, want 401", rr.Code)
	}
}

func TestAdmin_MemberRole_Returns403(t *testing.T) {
	env := newAdminEnv(t, "")
	rr := env.get(t, "/admin/escrows", env.token(t, domain.RoleMember))
	if rr.Code != http.StatusForbidden {
		t.Errorf("member on /admin/escrows = %d, want 403", rr.Code)
	}
}

func TestAdmin_IPNotWhitelisted_Returns403(t *testing.T) {
	env := newAdminEnv(t, "10.0.0.1")
	rr := env.get(t, "/admin/dashboard", env.token(t, domain.RoleAdmin))
	if rr.Code != http.StatusForbidden {
		t.Errorf("non-whitelisted IP = %d, want 403", rr.Code)
	}
}

func TestAdmin_StaffRoles_Allowed(t *testing.T) {
	env := newAdminEnv(t, "")
	for _, role := range []domain.UserRole{domain.RoleAdmin, domain.RoleCompliance, domain.RoleFinance, domain.RoleOps, domain.RoleReadOnly} {
		if rr := env.get(t, "/admin/dashboard", env.token(t, role)); rr.Code != http.StatusOK {
			t.Errorf("%s on /admin/dashboard = %d, want 200", role, rr.Code)
		}
	}
}

// ── Views ─────────────────────────────────────────────────────────────────────

func TestAdmin_EscrowDetailShowsPaymentsAndChecks(t *testing.T) {
	env := newAdminEnv(t, "")
	ctx := context.Background()
	actor := domain.Actor{UserID: "user-1", CompanyID: "C-1"}

	e, err := env.ledger.Create(ctx, actor, domain.CreateEscrowRequest{
		DealID: "D-1", PayerCompanyID: "C-1", PayeeCompanyID: "C-2",
		Amount: decimal.NewFromInt(120_000), Currency: "USD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.settler.Fund(ctx, actor, e.ID); err != nil {
		t.Fatalf("fund: %v", err)
	}

	rr := env.get(t, "/admin/escrows/"+e.ID.String(), env.token(t, domain.RoleCompliance))
	if rr.Code != http.StatusOK {
		t.Fatalf("detail = %d, want 200 body: %s", rr.Code, rr.Body.String())
	}
	data, _ := decode(t, rr)["data"].(map[string]interface{})
	payments, _ := data["payments"].([]interface{})
	checks, _ := data["amlChecks"].([]interface{})
	if len(payments) != 1 || len(checks) != 1 {
		t.Errorf("detail has %d payments and %d checks, want 1 and 1", len(payments), len(checks))
	}

	rr = env.get(t, "/admin/aml-checks?decision=PASS", env.token(t, domain.RoleCompliance))
	if rr.Code != http.StatusOK {
		t.Fatalf("aml-checks = %d, want 200", rr.Code)
	}
	if list, _ := decode(t, rr)["data"].([]interface{}); len(list) != 1 {
		t.Errorf("aml-checks?decision=PASS returned %d rows, want 1", len(list))
	}

	rr = env.get(t, "/admin/aml-checks?decision=MAYBE", env.token(t, domain.RoleCompliance))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("aml-checks with bad decision = %d, want 400", rr.Code)
	}
}

func TestAdmin_EscrowDetail_UnknownID_Returns404(t *testing.T) {
	env := newAdminEnv(t, "")
	rr := env.get(t, "/admin/escrows/11111111-1111-1111-1111-111111111111", env.token(t, domain.RoleAdmin))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown escrow detail = %d, want 404", rr.Code)
	}
}
