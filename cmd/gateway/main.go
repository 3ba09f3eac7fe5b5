package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/commerce-platform/internal/api/http"
	"github.com/spec-kit/commerce-platform/internal/config"
	"github.com/spec-kit/commerce-platform/internal/gateway"
	"github.com/spec-kit/commerce-platform/internal/observability"
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

	if len(cfg.Gateway.Routes) == 0 {
		logger.Fatal("no gateway routes configured")
	}

	metrics := observability.NewMetrics()
	router := gateway.NewRouter(cfg.Gateway, logger, metrics)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	app.All("/*", router.Handle)

	for _, binding := range cfg.Gateway.Routes {
		logger.Info("route bound",
			zap.String("name", binding.Name),
			zap.String("prefix", binding.Prefix),
			zap.String("target", binding.Target))
	}

	go func() {
		if err := app.Listen(cfg.Gateway.Addr()); err != nil {
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
