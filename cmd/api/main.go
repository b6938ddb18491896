package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ptfoundation/pandham-backend/api/routes"
	"github.com/ptfoundation/pandham-backend/internal/adminauth"
	"github.com/ptfoundation/pandham-backend/internal/catalog"
	"github.com/ptfoundation/pandham-backend/internal/contributions"
	"github.com/ptfoundation/pandham-backend/internal/inventory"
	"github.com/ptfoundation/pandham-backend/internal/otp"
	"github.com/ptfoundation/pandham-backend/internal/refnum"
	"github.com/ptfoundation/pandham-backend/internal/requests"
	"github.com/ptfoundation/pandham-backend/pkg/config"
	"github.com/ptfoundation/pandham-backend/pkg/db"
	"github.com/ptfoundation/pandham-backend/pkg/logger"
	"github.com/ptfoundation/pandham-backend/pkg/migrate"
	"github.com/ptfoundation/pandham-backend/pkg/outbox"
	"github.com/ptfoundation/pandham-backend/pkg/redis"
	"github.com/ptfoundation/pandham-backend/pkg/sms"
)

const shutdownTimeout = 15 * time.Second

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	smsClient, err := sms.NewClient(cfg.SMS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sms client", err)
		os.Exit(1)
	}

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

	contribRepo := contributions.NewRepository(conn)
	contributionSvc, err := contributions.NewService(contribRepo, dbClient, catalogSvc, inventorySvc, refnum.NewGenerator(), events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create contributions service", err)
		os.Exit(1)
	}

	requestSvc, err := requests.NewService(requests.NewRepository(conn), contribRepo, dbClient, catalogSvc, inventorySvc, refnum.NewGenerator(), events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}

	otpSvc, err := otp.NewService(redisClient, smsClient, cfg.OTP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create otp service", err)
		os.Exit(1)
	}

	adminAuthSvc, err := adminauth.NewService(adminauth.NewRepository(conn), cfg.JWT, cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Catalog:       catalogSvc,
			Inventory:     inventorySvc,
			Contributions: contributionSvc,
			Requests:      requestSvc,
			OTP:           otpSvc,
			AdminAuth:     adminAuthSvc,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during shutdown", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
