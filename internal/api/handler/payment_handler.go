package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/service"
)

// PaymentHandler serves the payment-trail endpoints.
type PaymentHandler struct {
	ledger *service.LedgerService
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(ledger *service.LedgerService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger}
}

// List godoc
// GET /api/payments?page=1&limit=20 [JWT]
func (h *PaymentHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	list, err := h.ledger.ListTransactions(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list payments")
		return
	}
	respondList(c, list, len(list), page, limit)
}
