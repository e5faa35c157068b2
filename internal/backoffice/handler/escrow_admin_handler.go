package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// EscrowAdminHandler serves /admin/escrows endpoints.
type EscrowAdminHandler struct {
	ledger *service.LedgerService
	aml    *service.AMLService
}

// NewEscrowAdminHandler creates an EscrowAdminHandler.
func NewEscrowAdminHandler(ledger *service.LedgerService, aml *service.AMLService) *EscrowAdminHandler {
	return &EscrowAdminHandler{ledger: ledger, aml: aml}
}

// List godoc
// GET /admin/escrows?page=1&limit=50
func (h *EscrowAdminHandler) List(c *gin.Context) {
	page, limit, offset := adminPagination(c)
	list, err := h.ledger.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondList(c, list, len(list), page, limit)
}

// Detail godoc
// GET /admin/escrows/:id
// Returns the escrow with its payment trail and every AML check run against it.
func (h *EscrowAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondEscrowNotFound(c)
		return
	}
	ctx := c.Request.Context()

	e, err := h.ledger.Get(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondEscrowNotFound(c)
			return
		}
		respondInternal(c, err)
		return
	}
	payments, err := h.ledger.ListTransactionsForEscrow(ctx, id)
	if err != nil {
		respondInternal(c, err)
		return
	}
	checks, err := h.aml.List(ctx, domain.AMLFilter{EscrowID: &id, Limit: adminMaxLimit})
	if err != nil {
		respondInternal(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"escrow":    e,
		"payments":  payments,
		"amlChecks": checks,
	})
}
