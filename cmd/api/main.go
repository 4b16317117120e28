package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/cache"
	"github.com/fairyhunter13/coupon-wallet/internal/config"
	"github.com/fairyhunter13/coupon-wallet/internal/handler"
	"github.com/fairyhunter13/coupon-wallet/internal/logger"
	"github.com/fairyhunter13/coupon-wallet/internal/middleware"
	"github.com/fairyhunter13/coupon-wallet/internal/notify"
	"github.com/fairyhunter13/coupon-wallet/internal/queue"
	"github.com/fairyhunter13/coupon-wallet/internal/repository"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
	"github.com/fairyhunter13/coupon-wallet/internal/validator"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Log)

	if cfg.Auth.JWTSecret == "change-me" {
		log.Warn().Msg("AUTH_JWT_SECRET is the development default; set it in production")
	}

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), database.PoolOptions{
		AppName:    "coupon-wallet-api",
		MaxRetries: 5,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		log.Info().Msg("schema applied")
	}

	// Optional infrastructure: resend throttle and notification queue
	var otpThrottle service.Throttle
	var redisPinger handler.Pinger
	throttle := cache.NewThrottle(cfg.Redis)
	if throttle != nil {
		otpThrottle = throttle
		redisPinger = throttle
	}

	queueClient := queue.NewClient(cfg.Redis, cfg.Queue)
	var dispatcher service.Dispatcher
	if queueClient.Enabled() {
		dispatcher = notify.NewQueueDispatcher(queueClient)
	} else {
		dispatcher = notify.NewSender(cfg.Notify)
	}

	// Repositories
	couponRepo := repository.NewCouponRepository(pool)
	claimRepo := repository.NewClaimRepository(pool)
	otpRepo := repository.NewOTPRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)

	// Core services
	registry := service.NewCouponRegistry(couponRepo)
	ledger := service.NewWalletLedger(claimRepo)
	otpManager := service.NewOTPManager(otpRepo, otpThrottle, service.OTPOptions{
		TTL:            cfg.OTP.TTL,
		MaxAttempts:    cfg.OTP.MaxAttempts,
		HashCost:       cfg.OTP.HashCost,
		ResendInterval: cfg.OTP.ResendInterval,
	})
	claimService := service.NewClaimService(registry, ledger)
	redemptionService := service.NewRedemptionService(pool, registry, ledger, otpManager, redemptionRepo, dispatcher).
		WithReturnCode(cfg.OTP.ReturnCode)

	// Handlers
	validate := validator.New()
	couponHandler := handler.NewCouponHandler(claimService, validate)
	claimHandler := handler.NewClaimHandler(claimService, validate)
	walletHandler := handler.NewWalletHandler(claimService, redemptionService)
	redemptionHandler := handler.NewRedemptionHandler(redemptionService, validate)
	healthHandler := handler.NewHealthHandler(pool, redisPinger)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Coupon Wallet",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(fiberlogger.New())

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")

	// Public coupon routes
	api.Get("/coupons/:id", couponHandler.GetCoupon)
	api.Post("/coupons/validate", couponHandler.ValidateCoupon)

	authenticate := middleware.Authenticate(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	// Customer wallet routes
	wallet := api.Group("/wallet", authenticate, middleware.RequireRole(middleware.RoleCustomer))
	wallet.Get("/", walletHandler.ListWallet)
	wallet.Post("/claims", claimHandler.ClaimCoupon)
	wallet.Get("/claims/:couponId", walletHandler.GetActiveClaim)
	wallet.Get("/redemptions", walletHandler.ListRedemptions)

	// Merchant terminal routes
	redemptions := api.Group("/redemptions", authenticate, middleware.RequireRole(middleware.RoleMerchant))
	redemptions.Post("/initiate", redemptionHandler.Initiate)
	redemptions.Post("/complete", redemptionHandler.Complete)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close dependencies AFTER server shutdown (even if shutdown timed out)
	if err := queueClient.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing queue client")
	}
	if err := throttle.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing redis client")
	}
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}
