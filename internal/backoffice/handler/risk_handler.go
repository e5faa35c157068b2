package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// RiskHandler serves /admin/aml-checks.
type RiskHandler struct {
	aml *service.AMLService
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(aml *service.AMLService) *RiskHandler {
	return &RiskHandler{aml: aml}
}

// AMLChecks godoc
// GET /admin/aml-checks?decision=BLOCK&escrow_id=uuid&page=1&limit=50
func (h *RiskHandler) AMLChecks(c *gin.Context) {
	page, limit, offset := adminPagination(c)
	f := domain.AMLFilter{Limit: limit, Offset: offset}

	if d := strings.ToUpper(strings.TrimSpace(c.Query("decision"))); d != "" {
		f.Decision = domain.Decision(d)
		if !f.Decision.IsValid() {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "decision must be PASS, REVIEW or BLOCK")
			return
		}
	}
	if raw := c.Query("escrow_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "escrow_id must be a UUID")
			return
		}
		f.EscrowID = &id
	}

	checks, err := h.aml.List(c.Request.Context(), f)
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondList(c, checks, len(checks), page, limit)
}
