package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kharido-labs/kharido-backend/api"
	"github.com/kharido-labs/kharido-backend/api/routes"
	checkoutsvc "github.com/kharido-labs/kharido-backend/internal/checkout"
	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/internal/payments"
	"github.com/kharido-labs/kharido-backend/internal/reconcile"
	"github.com/kharido-labs/kharido-backend/internal/wallet"
	"github.com/kharido-labs/kharido-backend/internal/withdrawals"
	"github.com/kharido-labs/kharido-backend/pkg/config"
	"github.com/kharido-labs/kharido-backend/pkg/db"
	"github.com/kharido-labs/kharido-backend/pkg/gateway"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/metrics"
	"github.com/kharido-labs/kharido-backend/pkg/migrate"
	"github.com/kharido-labs/kharido-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	conn := dbClient.DB()
	walletRepo := wallet.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	withdrawalsRepo := withdrawals.NewRepository(conn)
	checkoutRepo := checkoutsvc.NewRepository(conn)

	walletService, err := wallet.NewService(walletRepo, ordersRepo, dbClient, cfg.Wallet, logg, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, walletService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutRepo, ordersRepo, dbClient, cfg.Checkout, cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(ordersRepo, gatewayClient, dbClient, logg, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	withdrawalsService, err := withdrawals.NewService(withdrawalsRepo, walletService, dbClient, cfg.Wallet, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create withdrawals service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(walletRepo, ordersRepo, withdrawalsRepo, dbClient, cfg.Wallet, logg, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Registry:    registry,
		Checkout:    checkoutService,
		Orders:      ordersService,
		Payments:    paymentsService,
		Wallet:      walletService,
		Withdrawals: withdrawalsService,
		Reconcile:   reconcileService,
	})

	server := api.NewServer(cfg, router)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(ctx, "starting api server")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
