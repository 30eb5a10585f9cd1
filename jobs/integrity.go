package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/amanat-app/ledger/internal/ledger"
)

// IntegrityStore is the read surface the scan needs from the ledger.
type IntegrityStore interface {
	CustomerIDsWithEntries(ctx context.Context) ([]int64, error)
	ListForCustomer(ctx context.Context, customerID int64) ([]ledger.Entry, error)
}

// Repairer rebuilds a customer's running balances from scratch.
type Repairer interface {
	RecalculateCustomer(ctx context.Context, customerID int64) error
}

// IntegrityScanJob walks every customer ledger and checks that each
// stored remaining balance matches the recurrence over its
// predecessors. With a Repairer set, broken ledgers are rebuilt.
type IntegrityScanJob struct {
	Store    IntegrityStore
	Repairer Repairer
	Logger   *slog.Logger
}

func NewIntegrityScanJob(store IntegrityStore, repairer Repairer, logger *slog.Logger) *IntegrityScanJob {
	return &IntegrityScanJob{Store: store, Repairer: repairer, Logger: logger}
}

// Handle processes TaskTypeIntegrityScan tasks.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("integrity scan: handler not configured")
	}
	logger := j.logger()
	logger.Info("starting ledger integrity scan")

	customerIDs, err := j.Store.CustomerIDsWithEntries(ctx)
	if err != nil {
		logger.Error("list customers for scan", slog.Any("error", err))
		return err
	}

	scanned := 0
	broken := 0
	for _, customerID := range customerIDs {
		ok, err := j.scanCustomer(ctx, customerID)
		if err != nil {
			logger.Error("scan customer ledger",
				slog.Int64("customer_id", customerID), slog.Any("error", err))
			return err
		}
		scanned++
		if ok {
			continue
		}
		broken++
		if j.Repairer == nil {
			continue
		}
		if err := j.Repairer.RecalculateCustomer(ctx, customerID); err != nil {
			logger.Error("repair customer ledger",
				slog.Int64("customer_id", customerID), slog.Any("error", err))
			return err
		}
		logger.Info("customer ledger repaired", slog.Int64("customer_id", customerID))
	}

	logger.Info("ledger integrity scan finished",
		slog.Int("customers_scanned", scanned),
		slog.Int("violations_found", broken))
	return nil
}

func (j *IntegrityScanJob) scanCustomer(ctx context.Context, customerID int64) (bool, error) {
	entries, err := j.Store.ListForCustomer(ctx, customerID)
	if err != nil {
		return false, err
	}
	ok := true
	var running int64
	for _, entry := range entries {
		running = running - entry.AmountPaid + entry.AmountDue + entry.CommissionAmount
		if entry.RemainingAmount != running {
			ok = false
			j.logger().Warn("running balance violation",
				slog.Int64("customer_id", customerID),
				slog.Int64("entry_id", entry.ID),
				slog.Int64("stored", entry.RemainingAmount),
				slog.Int64("expected", running))
		}
	}
	return ok, nil
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
