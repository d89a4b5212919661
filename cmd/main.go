package main

import (
	"context"
	"os"
	"time"

	accountpg "github.com/charitybid/auctioncore/internal/account/infra/repository/postgres"
	"github.com/charitybid/auctioncore/internal/auction/application"
	auctionevents "github.com/charitybid/auctioncore/internal/auction/infra/events"
	auctionhttp "github.com/charitybid/auctioncore/internal/auction/infra/http"
	auctionpg "github.com/charitybid/auctioncore/internal/auction/infra/repository/postgres"
	"github.com/charitybid/auctioncore/internal/auction/infra/notify"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/charitybid/auctioncore/internal/shared/db/migrations"
	"github.com/charitybid/auctioncore/internal/shared/events"
	"github.com/charitybid/auctioncore/internal/shared/httpserver"
	"github.com/charitybid/auctioncore/internal/shared/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting auction core...")
	_ = godotenv.Load()

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(); err != nil {
		log.Fatal("Database migration failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.GetPostgresDBPool(ctx)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatal("NATS connection failed", zap.Error(err), zap.String("url", natsURL))
	}
	defer nc.Drain()

	hub := events.NewHub()
	go hub.Run(ctx)

	auctions := auctionpg.NewAuctionRepository(pool)
	accounts := accountpg.NewAccountRepository(pool)
	txManager := db.NewPgxTxManager(pool)
	clk := clock.System{}
	dispatcher := notify.NewNatsDispatcher(nc)
	publisher := auctionevents.NewFanoutPublisher(nc, hub)
	gateway := notify.NewNatsGateway(nc)

	submitBidUC := application.NewSubmitBidUseCase(auctions, accounts, txManager, clk, dispatcher, publisher)
	settlementUC := application.NewSettlementUseCase(auctions, accounts, txManager, gateway, clk, dispatcher, publisher)
	schedulerUC := application.NewSchedulerUseCase(
		auctions, accounts, settlementUC, dispatcher, publisher, clk,
		envDuration("ENDS_SOON_WINDOW", 10*time.Minute),
		envDuration("SETTLE_ITEM_TIMEOUT", 30*time.Second),
	)
	statusUpdateUC := application.NewStatusUpdateUseCase(auctions, txManager, clk)
	followUC := application.NewFollowUseCase(auctions, accounts, txManager, clk)

	service := application.NewAuctionService(submitBidUC, settlementUC, schedulerUC, statusUpdateUC, followUC, auctions)

	server := httpserver.NewServer()
	handler := auctionhttp.NewHandler(service, hub, os.Getenv("SCHEDULER_KEY"))
	handler.Register(server.App())

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":9000"
	}
	if err := server.Start(addr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.GetLogger().Warn("Invalid duration in env, using fallback",
			zap.String("key", key),
			zap.String("value", raw),
		)
		return fallback
	}
	return d
}
