package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ptfoundation/pandham-backend/internal/catalog"
	"github.com/ptfoundation/pandham-backend/internal/contributions"
	"github.com/ptfoundation/pandham-backend/internal/inventory"
	"github.com/ptfoundation/pandham-backend/internal/refnum"
	"github.com/ptfoundation/pandham-backend/internal/requests"
	"github.com/ptfoundation/pandham-backend/internal/rescan"
	"github.com/ptfoundation/pandham-backend/pkg/config"
	"github.com/ptfoundation/pandham-backend/pkg/db"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	"github.com/ptfoundation/pandham-backend/pkg/metrics"
	"github.com/ptfoundation/pandham-backend/pkg/migrate"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "rescan-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "rescan-worker"

	logg = logger.New(logger.Options{
		ServiceName: "rescan-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	conn := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn), dbClient, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	requestSvc, err := requests.NewService(
		requests.NewRepository(conn),
		contributions.NewRepository(conn),
		dbClient,
		catalogSvc,
		inventorySvc,
		refnum.NewGenerator(),
		events,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	jobs := metrics.NewJobMetrics(registry)

	consumer, err := rescan.NewConsumer(requestSvc, pubsubClient.DomainSubscription(), jobs, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create rescan consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "rescan-worker",
	})

	metricsServer := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer metricsServer.Close()

	logg.Info(ctx, "starting rescan worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "rescan worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "rescan worker shutting down gracefully")
}
