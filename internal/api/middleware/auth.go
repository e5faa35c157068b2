package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxUserID    = "userID"
	CtxCompanyID = "companyID"
	CtxRole      = "role"
)

// TokenParser verifies a bearer token. Implemented by service.AuthService.
type TokenParser interface {
	ParseAccessToken(token string) (*service.AppClaims, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores userID, companyID and role (all strings) in the gin
// context.
func JWTMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, domain.ErrUnauthorized)
			return
		}

		claims, err := parser.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortUnauthorized(c, domain.ErrTokenInvalid)
			return
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxCompanyID, claims.CompanyID)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    "ERR_UNAUTHORIZED",
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// RoleMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// RoleMiddleware ensures the authenticated user has one of the allowed roles.
// Must be placed after JWTMiddleware in the chain.
func RoleMiddleware(roles ...domain.UserRole) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   domain.ErrForbidden.Error(),
				"code":    "ERR_FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers — read the authenticated identity in handlers
// ──────────────────────────────────────────────────────────────────────────────

// GetUserID retrieves the authenticated user's id from the gin context.
// Returns "" if the middleware was not applied.
func GetUserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

// GetRole retrieves the authenticated user's role string from the gin context.
func GetRole(c *gin.Context) string {
	return c.GetString(CtxRole)
}

// ActorFrom builds the audit actor for the current request.
func ActorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		UserID:    c.GetString(CtxUserID),
		CompanyID: c.GetString(CtxCompanyID),
		Role:      c.GetString(CtxRole),
		IP:        c.ClientIP(),
	}
}
