package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tradeloop/escrowgate/internal/api/handler"
	"github.com/tradeloop/escrowgate/internal/api/middleware"
	"github.com/tradeloop/escrowgate/internal/config"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/service"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc       *service.AuthService
	LedgerSvc     *service.LedgerService
	SettlementSvc *service.SettlementService
	AMLSvc        *service.AMLService
	Cfg           *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check / metrics ───────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── Handlers ─────────────────────────────────────────────────────────────
	escrowH := handler.NewEscrowHandler(deps.LedgerSvc, deps.SettlementSvc)
	paymentH := handler.NewPaymentHandler(deps.LedgerSvc)
	complianceH := handler.NewComplianceHandler(deps.AMLSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	settleRL := middleware.RateLimitMiddleware(20) // 20 req/s per user for fund/release

	api := r.Group("/api")
	api.Use(jwtMW)
	{
		// Escrows
		escrows := api.Group("/escrows")
		{
			escrows.POST("", escrowH.Create)
			escrows.GET("", escrowH.List)
			escrows.GET("/:id", escrowH.Get)
			escrows.GET("/:id/transactions", escrowH.Transactions)
			escrows.POST("/:id/fund", settleRL, escrowH.Fund)
			escrows.POST("/:id/release", settleRL, escrowH.Release)
		}

		// Payments
		api.GET("/payments", paymentH.List)

		// Compliance
		api.POST("/compliance/aml-checks", complianceH.Screen)
		api.GET("/compliance/aml-checks",
			middleware.RoleMiddleware(domain.RoleCompliance, domain.RoleAdmin),
			complianceH.List)
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// Outside production all origins are allowed; in production only the
// configured CORS_ALLOWED_ORIGINS.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
