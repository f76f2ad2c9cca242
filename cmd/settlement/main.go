package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskora/settlement-service/internal/app/services"
	"github.com/taskora/settlement-service/internal/config"
	"github.com/taskora/settlement-service/internal/infrastructure/backend"
	"github.com/taskora/settlement-service/internal/infrastructure/checkout"
	"github.com/taskora/settlement-service/internal/infrastructure/events"
	"github.com/taskora/settlement-service/internal/infrastructure/ledger"
	"github.com/taskora/settlement-service/internal/infrastructure/metrics"
	"github.com/taskora/settlement-service/internal/infrastructure/persistence"
	"github.com/taskora/settlement-service/internal/infrastructure/persistence/postgres"
	"github.com/taskora/settlement-service/internal/interfaces/rest/handlers"
	"github.com/taskora/settlement-service/internal/interfaces/rest/middleware"
	"github.com/taskora/settlement-service/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting settlement service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	journal := postgres.NewJournalRepository(db.Pool)

	ledgerClient := ledger.NewLedgerClient(cfg.LedgerClient)
	retryLedgerClient := ledger.NewRetryLedgerClient(ledgerClient, cfg.Retry)

	checkoutGateway := checkout.NewCheckoutGateway(cfg.CheckoutClient)
	backendClient := backend.NewBackendClient(cfg.BackendClient)

	publisher := events.NewKafkaPublisher(cfg.Kafka)
	defer publisher.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	statusService := services.NewStatusService(backendClient, publisher, m, logger)
	settlementService := services.NewSettlementService(
		statusService,
		retryLedgerClient,
		checkoutGateway,
		journal,
		publisher,
		m,
		logger,
	).WithCompensationPolicy(cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)

	h := handlers.NewHandlers(statusService, settlementService, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.WriteTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(
		journal,
		retryLedgerClient,
		backendClient,
		m,
		cfg.Worker.Interval,
		cfg.Worker.StaleAge,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)

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
