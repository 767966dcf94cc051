package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/homeledger/homeledger/internal/app"
	"github.com/homeledger/homeledger/internal/budget"
	"github.com/homeledger/homeledger/internal/cache"
	"github.com/homeledger/homeledger/internal/checkin"
	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
	"github.com/homeledger/homeledger/internal/recurrence"
	"github.com/homeledger/homeledger/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	store := cache.New(redisClient, cfg.CacheTTL)

	fxRepo := fx.NewRepository(pool)
	fxProvider := fx.NewProvider(fxRepo, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, fxProvider, store, logger)

	budgetRepo := budget.NewRepository(pool)
	budgetEngine := budget.NewEngine(ledgerRepo, fxProvider, logger)
	budgetService := budget.NewService(budgetRepo, budgetEngine, store, logger)

	recurrenceRepo := recurrence.NewRepository(pool)
	recurrenceService := recurrence.NewService(recurrenceRepo, ledgerService, logger)

	checkinService := checkin.NewService(redisClient, recurrenceService, budgetService, ledgerRepo, cfg.CalibrationStaleWarn, logger)

	checkinTask, err := jobs.NewDailyCheckinTask(jobs.DailyCheckinPayload{})
	if err != nil {
		logger.Error("build check-in task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeDailyCheckin, Handler: jobs.NewDailyCheckinHandler(checkinService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: checkinTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
