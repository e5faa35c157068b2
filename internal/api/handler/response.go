package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
// count is the number of items on this page.
func respondList(c *gin.Context, items interface{}, count, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"count": count,
			"page":  page,
			"limit": limit,
		},
	})
}

// parsePagination reads page/limit query params with defaults 1/20.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}

// parseEscrowID reads the :id path param. A malformed id cannot name an
// existing escrow, so it is reported as not found.
func parseEscrowID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", domain.ErrEscrowNotFound.Error())
		return uuid.Nil, false
	}
	return id, true
}

// respondDomainError maps a service error to its HTTP status and code.
func respondDomainError(c *gin.Context, err error, fallback string) {
	if cb, ok := domain.AsComplianceBlocked(err); ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Escrow blocked by AML compliance check",
			"code":    "ERR_COMPLIANCE_BLOCKED",
			"aml":     cb.Check,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	case errors.Is(err, domain.ErrEscrowNotFound):
		respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", domain.ErrEscrowNotFound.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(c, http.StatusConflict, "ERR_INVALID_TRANSITION", err.Error())
	case errors.Is(err, domain.ErrTimeout):
		respondError(c, http.StatusGatewayTimeout, "ERR_TIMEOUT", domain.ErrTimeout.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", fallback)
	}
}
