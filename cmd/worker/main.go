package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/amanat-app/ledger/internal/app"
	"github.com/amanat-app/ledger/internal/customers"
	"github.com/amanat-app/ledger/internal/ledger"
	"github.com/amanat-app/ledger/internal/platform/cache"
	"github.com/amanat-app/ledger/internal/platform/db"
	"github.com/amanat-app/ledger/internal/reports"
	"github.com/amanat-app/ledger/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, nil, logger)

	balanceCache := customers.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	changedJob := jobs.NewLedgerChangedJob(balanceCache, reportCache, logger)
	integrityJob := jobs.NewIntegrityScanJob(ledgerRepo, ledgerService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeLedgerChanged, Handler: changedJob.Handle},
			{Type: jobs.TaskTypeIntegrityScan, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewIntegrityScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
