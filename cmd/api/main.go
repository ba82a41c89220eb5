package main

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Killerbeez7/print-dungeon-backend/api/routes"
	"github.com/Killerbeez7/print-dungeon-backend/internal/catalog"
	"github.com/Killerbeez7/print-dungeon-backend/internal/connect"
	"github.com/Killerbeez7/print-dungeon-backend/internal/payments"
	"github.com/Killerbeez7/print-dungeon-backend/internal/subscriptions"
	"github.com/Killerbeez7/print-dungeon-backend/internal/users"
	stripewebhook "github.com/Killerbeez7/print-dungeon-backend/internal/webhooks/stripe"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/cache"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/metrics"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/migrate"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/redis"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/retry"
	stripeclient "github.com/Killerbeez7/print-dungeon-backend/pkg/stripe"
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

	stripeClient, err := stripeclient.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	retryer := retry.New(cfg.Retry, logg, pipelineMetrics)

	usersRepo := users.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	connectRepo := connect.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	subscriptionsRepo := subscriptions.NewRepository(dbClient.DB())

	resolver, err := connect.NewResolver(connect.ResolverParams{
		Users:    usersRepo,
		Cache:    cache.NewTTL[string, uuid.UUID](cfg.Webhooks.ResolverTTL, nil),
		Logger:   logg,
		Observer: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create account resolver", err)
		os.Exit(1)
	}

	connectService, err := connect.NewService(connect.ServiceParams{
		Gateway:  stripeClient,
		Retryer:  retryer,
		Users:    usersRepo,
		Accounts: connectRepo,
		Config:   cfg.Stripe,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create connect service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Gateway:  stripeClient,
		Retryer:  retryer,
		Users:    usersRepo,
		Catalog:  catalogRepo,
		Repo:     paymentsRepo,
		Logger:   logg,
		Observer: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Gateway: stripeClient,
		Retryer: retryer,
		Users:   usersRepo,
		Repo:    subscriptionsRepo,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Resolver:      resolver,
		Snapshots:     connectService,
		Subscriptions: subscriptionsRepo,
		Logger:        logg,
		Observer:      pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			paymentsService,
			connectService,
			subscriptionsService,
			stripeClient,
			webhookService,
			webhookGuard,
			registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
