package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// dashboardWindow is how many recent rows each dashboard panel shows.
const dashboardWindow = 20

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	ledger *service.LedgerService
	aml    *service.AMLService
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(ledger *service.LedgerService, aml *service.AMLService) *DashboardHandler {
	return &DashboardHandler{ledger: ledger, aml: aml}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	escrows, err := h.ledger.List(ctx, dashboardWindow, 0)
	if err != nil {
		respondInternal(c, err)
		return
	}
	byStatus := make(map[domain.EscrowStatus]int)
	for _, e := range escrows {
		byStatus[e.Status]++
	}

	blocked, err := h.aml.List(ctx, domain.AMLFilter{Decision: domain.DecisionBlock, Limit: dashboardWindow})
	if err != nil {
		respondInternal(c, err)
		return
	}
	review, err := h.aml.List(ctx, domain.AMLFilter{Decision: domain.DecisionReview, Limit: dashboardWindow})
	if err != nil {
		respondInternal(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"recentEscrows":         escrows,
		"recentEscrowsByStatus": byStatus,
		"recentBlocked":         blocked,
		"recentReview":          review,
		"serverTime":            time.Now().UTC(),
	})
}
