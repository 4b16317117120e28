package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/config"
	"github.com/fairyhunter13/coupon-wallet/internal/logger"
	"github.com/fairyhunter13/coupon-wallet/internal/notify"
	"github.com/fairyhunter13/coupon-wallet/internal/repository"
	"github.com/fairyhunter13/coupon-wallet/internal/service"
	"github.com/fairyhunter13/coupon-wallet/internal/worker"
	"github.com/fairyhunter13/coupon-wallet/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Log)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), database.PoolOptions{
		AppName:    "coupon-wallet-worker",
		MaxRetries: 5,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	ledger := service.NewWalletLedger(repository.NewClaimRepository(pool))
	consumer := worker.NewConsumer(notify.NewSender(cfg.Notify), ledger)

	svc, err := worker.NewService(cfg.Redis, cfg.Queue, consumer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create worker (is QUEUE_ENABLED set?)")
	}
	if err := svc.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}
	log.Info().
		Str("queue", cfg.Queue.Name).
		Int("concurrency", cfg.Queue.Concurrency).
		Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Msg("waiting for in-flight tasks to complete...")
	svc.Stop()

	pool.Close()
	log.Info().Msg("worker stopped")
}
