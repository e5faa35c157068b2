package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/escrowgate/internal/api/middleware"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// EscrowHandler serves escrow creation, lookup and the gated fund/release
// endpoints.
type EscrowHandler struct {
	ledger     *service.LedgerService
	settlement *service.SettlementService
}

// NewEscrowHandler creates an EscrowHandler.
func NewEscrowHandler(ledger *service.LedgerService, settlement *service.SettlementService) *EscrowHandler {
	return &EscrowHandler{ledger: ledger, settlement: settlement}
}

// Create godoc
// POST /api/escrows [JWT]
// Body: {"dealId":"D-1","payerCompanyId":"C-1","payeeCompanyId":"C-2","amount":"5000.00","currency":"USD"}
func (h *EscrowHandler) Create(c *gin.Context) {
	var body struct {
		DealID          string          `json:"dealId"          binding:"required"`
		PayerCompanyID  string          `json:"payerCompanyId"  binding:"required"`
		PayeeCompanyID  string          `json:"payeeCompanyId"  binding:"required"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		PaymentProvider string          `json:"paymentProvider"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	e, err := h.ledger.Create(c.Request.Context(), middleware.ActorFrom(c), domain.CreateEscrowRequest{
		DealID:          body.DealID,
		PayerCompanyID:  body.PayerCompanyID,
		PayeeCompanyID:  body.PayeeCompanyID,
		Amount:          body.Amount,
		Currency:        body.Currency,
		PaymentProvider: body.PaymentProvider,
	})
	if err != nil {
		respondDomainError(c, err, "could not create escrow")
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{
		"id":                e.ID,
		"dealId":            e.DealID,
		"status":            e.Status,
		"providerReference": e.ProviderReference,
	})
}

// Fund godoc
// POST /api/escrows/:id/fund [JWT]
func (h *EscrowHandler) Fund(c *gin.Context) {
	h.settle(c, h.settlement.Fund, "could not fund escrow")
}

// Release godoc
// POST /api/escrows/:id/release [JWT]
func (h *EscrowHandler) Release(c *gin.Context) {
	h.settle(c, h.settlement.Release, "could not release escrow")
}

type settleFunc func(ctx context.Context, actor domain.Actor, id uuid.UUID) (*service.SettlementResult, error)

func (h *EscrowHandler) settle(c *gin.Context, fn settleFunc, failMsg string) {
	id, ok := parseEscrowID(c)
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondDomainError(c, err, failMsg)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"id":     res.Escrow.ID,
		"status": res.Escrow.Status,
		"aml":    res.AML,
	})
}

// Get godoc
// GET /api/escrows/:id [JWT]
func (h *EscrowHandler) Get(c *gin.Context) {
	id, ok := parseEscrowID(c)
	if !ok {
		return
	}
	e, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not load escrow")
		return
	}
	respondSuccess(c, http.StatusOK, e)
}

// List godoc
// GET /api/escrows?page=1&limit=20 [JWT]
func (h *EscrowHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	list, err := h.ledger.List(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err, "could not list escrows")
		return
	}
	respondList(c, list, len(list), page, limit)
}

// Transactions godoc
// GET /api/escrows/:id/transactions [JWT]
func (h *EscrowHandler) Transactions(c *gin.Context) {
	id, ok := parseEscrowID(c)
	if !ok {
		return
	}
	list, err := h.ledger.ListTransactionsForEscrow(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not list transactions")
		return
	}
	respondSuccess(c, http.StatusOK, list)
}
