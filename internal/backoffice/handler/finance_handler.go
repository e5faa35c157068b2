package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/service"
)

// FinanceHandler serves /admin/payments.
type FinanceHandler struct {
	ledger *service.LedgerService
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(ledger *service.LedgerService) *FinanceHandler {
	return &FinanceHandler{ledger: ledger}
}

// Payments godoc
// GET /admin/payments?page=1&limit=50
func (h *FinanceHandler) Payments(c *gin.Context) {
	page, limit, offset := adminPagination(c)
	list, err := h.ledger.ListTransactions(c.Request.Context(), limit, offset)
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondList(c, list, len(list), page, limit)
}
