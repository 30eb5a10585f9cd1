package cli

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/amanat-app/ledger/internal/app"
	"github.com/amanat-app/ledger/internal/customers"
	"github.com/amanat-app/ledger/internal/ledger"
	"github.com/amanat-app/ledger/internal/platform/cache"
	"github.com/amanat-app/ledger/internal/platform/db"
	"github.com/amanat-app/ledger/internal/reports"
	"github.com/amanat-app/ledger/jobs"
)

// runtime wires configuration, storage and services for one command
// invocation. Commands build it in RunE and close it when done.
type runtime struct {
	cfg    *app.Config
	logger *slog.Logger

	pool       *pgxpool.Pool
	redis      *redis.Client
	jobsClient *jobs.Client

	customers *customers.Service
	ledger    *ledger.Service
	reports   *reports.Service
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The CLI stays usable without redis; caches and the job queue
		// are skipped.
		logger.Warn("redis unavailable, running without caches", slog.Any("error", err))
		redisClient = nil
	}

	var jobsClient *jobs.Client
	var notifier ledger.Notifier
	if redisClient != nil {
		jobsClient = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		notifier = jobs.NewQueueNotifier(jobsClient, logger)
	}

	balanceCache := customers.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	rt := &runtime{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		redis:      redisClient,
		jobsClient: jobsClient,
		customers:  customers.NewService(customers.NewRepository(pool), balanceCache, logger),
		ledger:     ledger.NewService(ledger.NewRepository(pool), notifier, logger),
		reports:    reports.NewService(reports.NewRepository(pool), reportCache, logger),
	}
	return rt, nil
}

func (r *runtime) Close() {
	if r.jobsClient != nil {
		if err := r.jobsClient.Close(); err != nil {
			r.logger.Warn("close jobs client", slog.Any("error", err))
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			r.logger.Warn("close redis", slog.Any("error", err))
		}
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// mutationContext bounds a write operation with the configured timeout.
func (r *runtime) mutationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.MutationTimeout)
}
