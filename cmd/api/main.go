package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpadp "collateral-lending/internal/adapter/http"
	idemp "collateral-lending/internal/adapter/middleware"
	"collateral-lending/internal/adapter/publisher"
	"collateral-lending/internal/config"
	"collateral-lending/internal/domain/event"
	"collateral-lending/internal/infrastructure/cache"
	"collateral-lending/internal/infrastructure/logging"
	"collateral-lending/internal/infrastructure/metrics"
	"collateral-lending/internal/usecase/lending"
	"collateral-lending/internal/usecase/relay"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(logging.Options{
		Service: "collateral-lending",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tx, closeStore, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	m := metrics.Lending()
	engine := lending.NewEngine(tx, cfg.Ledger(), lending.WithMetrics(m), lending.WithLogger(logger))

	var (
		pub      event.Publisher = publisher.NewLogPublisher(logger)
		mutating []echo.MiddlewareFunc
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		mutating = append(mutating, idemp.Idempotency(rdb, idemp.IdempotencyConfig{
			TTL:    cfg.IdempotencyTTL(),
			Logger: logger,
		}))
		pub = publisher.NewStreamPublisher(rdb, cfg.EventStream, cfg.EventStreamMaxLen)
	} else {
		logger.Warn("REDIS_ADDR not set: idempotency disabled, events go to the log")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	// routes
	httpadp.Register(e, httpadp.NewHandler(), httpadp.NewLoanHandler(engine), mutating...)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go relay.New(tx, pub, cfg.RelayInterval(), relay.WithMetrics(m), relay.WithLogger(logger)).Run(ctx)

	addr := ":" + cfg.AppPort
	go func() {
		logger.Info("listening", "addr", addr, "store", cfg.StoreDriver, "ledger", cfg.Ledger().Hex())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
