package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dispatchly/payments/internal/config"
	"github.com/dispatchly/payments/internal/gateway"
	"github.com/dispatchly/payments/internal/infrastructure/persistence"
	"github.com/dispatchly/payments/internal/infrastructure/persistence/postgres"
	"github.com/dispatchly/payments/internal/infrastructure/stripe"
	"github.com/dispatchly/payments/internal/interfaces/rest"
	"github.com/dispatchly/payments/internal/interfaces/rest/middleware"
	"github.com/dispatchly/payments/internal/materializer"
	"github.com/dispatchly/payments/internal/webhook"
	"github.com/dispatchly/payments/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments service",
		"port", cfg.Server.Port,
		"env", cfg.Primary.Env,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	paymentRepo := postgres.NewPaymentRepository(db.Pool)
	refundRepo := postgres.NewRefundRepository(db.Pool)
	eventRepo := postgres.NewEventRepository(db.Pool)
	taskStore := postgres.NewTaskStore(db.Pool)
	remarkStore := postgres.NewRemarkStore(db.Pool)
	payoutQueue := postgres.NewPayoutQueue(db.Pool)

	stripeClient := stripe.NewClient(cfg.Stripe)
	retryStripeClient := stripe.NewRetryClient(stripeClient, cfg.Retry, logger)

	mat := materializer.NewMaterializer(paymentRepo, taskStore, payoutQueue, logger)

	localGateway := gateway.NewLocalGateway(paymentRepo, refundRepo, remarkStore, mat, cfg.Local, logger)
	stripeGateway := gateway.NewStripeGateway(
		retryStripeClient,
		paymentRepo,
		refundRepo,
		mat,
		cfg.Stripe,
		cfg.Primary.IsProduction(),
		logger,
	)
	registry := gateway.NewRegistry(localGateway, stripeGateway)

	dispatcher := webhook.NewDispatcher(
		registry,
		eventRepo,
		cfg.Local,
		cfg.Stripe,
		cfg.CRM,
		cfg.Social,
		logger,
	)

	h := rest.NewHandlers(registry, paymentRepo, refundRepo, dispatcher, db.Pool, logger)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := http.Handler(mux)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Metrics()(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	syncWorker := worker.NewSyncWorker(paymentRepo, registry, cfg.Worker, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go syncWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
