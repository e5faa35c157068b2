package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradeloop/escrowgate/internal/api/middleware"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// ComplianceHandler serves standalone AML screening.
type ComplianceHandler struct {
	aml *service.AMLService
}

// NewComplianceHandler creates a ComplianceHandler.
func NewComplianceHandler(aml *service.AMLService) *ComplianceHandler {
	return &ComplianceHandler{aml: aml}
}

// Screen godoc
// POST /api/compliance/aml-checks [JWT]
// Body: {"amount":"150000","currency":"USD","dealId":"D-1","companyId":"C-1"}
func (h *ComplianceHandler) Screen(c *gin.Context) {
	var body struct {
		DealID    string          `json:"dealId"`
		EscrowID  string          `json:"escrowId"`
		CompanyID string          `json:"companyId"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	in := service.AMLInput{
		DealID:    body.DealID,
		CompanyID: body.CompanyID,
		Amount:    body.Amount,
		Currency:  body.Currency,
	}
	if body.EscrowID != "" {
		id, err := uuid.Parse(body.EscrowID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "escrowId must be a UUID")
			return
		}
		in.EscrowID = &id
	}

	check, err := h.aml.Screen(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		respondDomainError(c, err, "could not record aml check")
		return
	}
	respondSuccess(c, http.StatusCreated, check)
}

// List godoc
// GET /api/compliance/aml-checks?decision=BLOCK&escrowId=uuid&page=1&limit=20 [JWT, compliance|admin]
func (h *ComplianceHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	f := domain.AMLFilter{Limit: limit, Offset: (page - 1) * limit}

	if d := strings.ToUpper(strings.TrimSpace(c.Query("decision"))); d != "" {
		f.Decision = domain.Decision(d)
		if !f.Decision.IsValid() {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "decision must be PASS, REVIEW or BLOCK")
			return
		}
	}
	if raw := c.Query("escrowId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "escrowId must be a UUID")
			return
		}
		f.EscrowID = &id
	}

	checks, err := h.aml.List(c.Request.Context(), f)
	if err != nil {
		respondDomainError(c, err, "could not list aml checks")
		return
	}
	respondList(c, checks, len(checks), page, limit)
}
