package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/commerce-platform/internal/api/http"
	"github.com/spec-kit/commerce-platform/internal/api/http/handlers"
	"github.com/spec-kit/commerce-platform/internal/auth"
	"github.com/spec-kit/commerce-platform/internal/config"
	"github.com/spec-kit/commerce-platform/internal/events"
	"github.com/spec-kit/commerce-platform/internal/observability"
	"github.com/spec-kit/commerce-platform/internal/persistence"
	"github.com/spec-kit/commerce-platform/internal/repository"
	"github.com/spec-kit/commerce-platform/internal/revocation"
	"github.com/spec-kit/commerce-platform/internal/service"
	"github.com/spec-kit/commerce-platform/internal/upload"
	"github.com/spec-kit/commerce-platform/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// The revocation store variant is chosen exactly once here. When
	// enabled, Redis must be reachable at startup; when disabled, it is
	// never dialed and every token reads as live.
	var redis *persistence.Redis
	revocationStore := revocation.NewNoopStore()
	if cfg.Auth.RevocationEnabled {
		redis, err = persistence.NewRedis(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		revocationStore = revocation.NewRedisStore(redis.Client)
	} else {
		logger.Warn("token revocation disabled; logout will not invalidate tokens")
	}

	sink, err := upload.NewDiskSink(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		logger.Fatal("failed to init upload sink", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	productRepo := repository.NewProductRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sessionService := service.NewSessionService(cfg.Auth, service.SessionDependencies{
		UserRepo:   userRepo,
		Revocation: revocationStore,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	profileService := service.NewProfileService(userRepo, sink, dispatcher, logger)
	productService := service.NewProductService(productRepo, dispatcher)

	authMiddleware := auth.NewAuthMiddleware(sessionService.TokenManager(), userRepo, revocationStore, logger)

	app := fiber.New()
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(sessionService),
		Users:          handlers.NewUsersHandler(profileService),
		Products:       handlers.NewProductsHandler(productService),
		AuthMiddleware: authMiddleware,
		UploadDir:      cfg.Upload.Dir,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
