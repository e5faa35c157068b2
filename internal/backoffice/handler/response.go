package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// Admin list views page wider than the public API.
const (
	adminDefaultLimit = 50
	adminMaxLimit     = 500
)

// ──────────────────────────────────────────────────────────────────────────────
// Admin response helpers (same envelope as internal/api/handler/response.go)
// ──────────────────────────────────────────────────────────────────────────────

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondInternal logs err with the request path and hides it from the
// caller. Staff see the request failed, the log carries the cause.
func respondInternal(c *gin.Context, err error) {
	slog.Error("backoffice request failed", "path", c.FullPath(), "error", err)
	respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "internal error")
}

func respondEscrowNotFound(c *gin.Context) {
	respondError(c, http.StatusNotFound, "ERR_ESCROW_NOT_FOUND", domain.ErrEscrowNotFound.Error())
}

// respondList writes a page of rows. count is the number of rows on this page.
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

// adminPagination reads page/limit query params and returns the row offset
// the services expect.
func adminPagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(adminDefaultLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > adminMaxLimit {
		limit = adminDefaultLimit
	}
	return page, limit, (page - 1) * limit
}
