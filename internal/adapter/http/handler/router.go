package handler

import (
	"unlock-ledger/internal/adapter/http/middleware"
	redisStore "unlock-ledger/internal/adapter/storage/redis"
	"unlock-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	UnlockSvc      ports.UnlockService
	WalletSvc      ports.WalletService
	ReconcilerSvc  ports.ReconcilerService
	TokenVerifier  ports.TokenVerifier
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Gateway webhook (signature-authenticated, never rate limited) ---
	webhookHandler := NewWebhookHandler(deps.ReconcilerSvc)
	v1.POST("/webhooks/gateway", webhookHandler.HandleGatewayEvent)

	// --- Identity-authenticated routes ---
	identity := middleware.IdentityAuth(deps.TokenVerifier, deps.Logger)
	unlockHandler := NewUnlockHandler(deps.UnlockSvc)
	walletHandler := NewWalletHandler(deps.WalletSvc)

	profiles := v1.Group("/profiles", identity)
	{
		profiles.GET("/:profileId/price", rl("price_preview"), unlockHandler.PreviewPrice)
	}

	unlocks := v1.Group("/unlocks", identity)
	{
		unlocks.POST("", rl("unlocks"), unlockHandler.RequestUnlock)
	}

	payments := v1.Group("/payments", identity)
	{
		payments.POST("/:paymentId/confirm", rl("unlocks"), unlockHandler.ConfirmPayment)
	}

	wallets := v1.Group("/wallets", identity)
	{
		wallets.GET("/balance", rl("wallet_reads"), walletHandler.GetBalance)
		wallets.GET("/transactions", rl("wallet_reads"), walletHandler.ListTransactions)
		wallets.POST("/topup", rl("wallets_topup"), walletHandler.Topup)
	}

	return r
}
