package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unlock-ledger/config"
	"unlock-ledger/internal/adapter/directory"
	"unlock-ledger/internal/adapter/gateway/stripegw"
	httpHandler "unlock-ledger/internal/adapter/http/handler"
	pgStorage "unlock-ledger/internal/adapter/storage/postgres"
	redisStorage "unlock-ledger/internal/adapter/storage/redis"
	"unlock-ledger/internal/core/ports"
	"unlock-ledger/internal/service"
	"unlock-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Unlock Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	walletTxRepo := pgStorage.NewWalletTxRepo(pool)
	grantRepo := pgStorage.NewGrantRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	subscriptionRepo := pgStorage.NewSubscriptionRepo(pool)
	priceRuleRepo := pgStorage.NewPriceRuleRepo(pool)
	ledgerEventRepo := pgStorage.NewLedgerEventRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Redis stores
	eventStore := redisStorage.NewEventStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// External adapters
	gateway := stripegw.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	profileDir := directory.New(cfg.Directory)
	tokenVerifier := service.NewJWTVerifier(cfg.Identity.JWTSecret, cfg.Identity.Issuer)

	// Business services
	notifier := service.NewNotifier(ledgerEventRepo, log)
	pricingSvc, err := service.NewPricingService(priceRuleRepo, profileDir, cfg.Pricing, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pricing service")
	}
	quotaSvc := service.NewQuotaService(subscriptionRepo, log)
	unlockSvc := service.NewUnlockService(
		grantRepo,
		paymentRepo,
		walletRepo,
		walletTxRepo,
		pricingSvc,
		quotaSvc,
		profileDir,
		gateway,
		notifier,
		transactor,
		log,
	)
	walletSvc := service.NewWalletService(walletRepo, walletTxRepo, paymentRepo, gateway, log)
	reconcilerSvc := service.NewReconcilerService(gateway, eventStore, paymentRepo, unlockSvc, log)

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		UnlockSvc:      unlockSvc,
		WalletSvc:      walletSvc,
		ReconcilerSvc:  reconcilerSvc,
		TokenVerifier:  tokenVerifier,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
