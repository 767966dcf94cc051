package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/homeledger/homeledger/internal/app"
	"github.com/homeledger/homeledger/internal/balance"
	"github.com/homeledger/homeledger/internal/budget"
	"github.com/homeledger/homeledger/internal/cache"
	"github.com/homeledger/homeledger/internal/checkin"
	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
	"github.com/homeledger/homeledger/internal/recurrence"
	"github.com/homeledger/homeledger/internal/storage"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := storage.RunMigrations(cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := cache.New(redisClient, cfg.CacheTTL)

	fxRepo := fx.NewRepository(dbpool)
	fxProvider := fx.NewProvider(fxRepo, logger)
	fxHandler := fx.NewHandler(logger, fxRepo, store)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, fxProvider, store, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	calculator := balance.NewCalculator(ledgerRepo)
	aggregator := balance.NewAggregator(calculator, logger)
	balanceHandler := balance.NewHandler(logger, ledgerRepo, aggregator, fxProvider, store, cfg.ReportingCurrency)

	budgetRepo := budget.NewRepository(dbpool)
	budgetEngine := budget.NewEngine(ledgerRepo, fxProvider, logger)
	budgetService := budget.NewService(budgetRepo, budgetEngine, store, logger)
	budgetHandler := budget.NewHandler(logger, budgetService)

	recurrenceRepo := recurrence.NewRepository(dbpool)
	recurrenceService := recurrence.NewService(recurrenceRepo, ledgerService, logger)
	recurrenceHandler := recurrence.NewHandler(logger, recurrenceService)

	checkinService := checkin.NewService(redisClient, recurrenceService, budgetService, ledgerRepo, cfg.CalibrationStaleWarn, logger)
	checkinHandler := checkin.NewHandler(logger, checkinService)

	router := app.NewRouter(app.RouterParams{
		Config:            cfg,
		LedgerHandler:     ledgerHandler,
		BalanceHandler:    balanceHandler,
		FXHandler:         fxHandler,
		BudgetHandler:     budgetHandler,
		RecurrenceHandler: recurrenceHandler,
		CheckinHandler:    checkinHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
