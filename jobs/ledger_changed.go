package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/amanat-app/ledger/internal/customers"
	"github.com/amanat-app/ledger/internal/ledger"
	"github.com/amanat-app/ledger/internal/reports"
)

// LedgerChangedJob reacts to ledger mutations by dropping derived
// caches: the per-customer balance and every cached report summary.
type LedgerChangedJob struct {
	Balances *customers.BalanceCache
	Reports  *reports.Cache
	Logger   *slog.Logger
}

func NewLedgerChangedJob(balances *customers.BalanceCache, reportsCache *reports.Cache, logger *slog.Logger) *LedgerChangedJob {
	return &LedgerChangedJob{Balances: balances, Reports: reportsCache, Logger: logger}
}

// Handle processes TaskTypeLedgerChanged tasks.
func (j *LedgerChangedJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger changed: handler not configured")
	}
	var event ledger.ChangedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}
	if event.CustomerID <= 0 {
		return asynq.SkipRetry
	}

	logger := j.logger().With(
		slog.String("event_id", event.EventID),
		slog.Int64("customer_id", event.CustomerID))

	if err := j.Balances.Invalidate(ctx, event.CustomerID); err != nil {
		logger.Error("invalidate balance cache", slog.Any("error", err))
		return err
	}
	if err := j.Reports.Bump(ctx); err != nil {
		logger.Error("bump report cache version", slog.Any("error", err))
		return err
	}
	logger.Debug("caches invalidated after ledger change")
	return nil
}

func (j *LedgerChangedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
