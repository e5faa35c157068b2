package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tradeloop/escrowgate/internal/backoffice/handler"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc   *service.AuthService
	LedgerSvc *service.LedgerService
	AMLSvc    *service.AMLService
	Cfg       *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on port 8081.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.LedgerSvc, deps.AMLSvc)
	escrowH := handler.NewEscrowAdminHandler(deps.LedgerSvc, deps.AMLSvc)
	financeH := handler.NewFinanceHandler(deps.LedgerSvc)
	riskH := handler.NewRiskHandler(deps.AMLSvc)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Escrows
		e := admin.Group("/escrows")
		{
			e.GET("", escrowH.List)
			e.GET("/:id", escrowH.Detail)
		}

		// Finance
		admin.GET("/payments", financeH.Payments)

		// Compliance
		admin.GET("/aml-checks", riskH.AMLChecks)
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not whitelisted",
				"code":    "ERR_FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the caller to have a
// back-office role (admin, compliance, finance, ops, readonly).
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "error": "unauthorized", "code": "ERR_UNAUTHORIZED",
			})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "error": "invalid token", "code": "ERR_UNAUTHORIZED",
			})
			return
		}

		if !domain.UserRole(claims.Role).CanAccessBackoffice() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false, "error": "insufficient permissions", "code": "ERR_FORBIDDEN",
			})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
