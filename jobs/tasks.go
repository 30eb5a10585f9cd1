package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/amanat-app/ledger/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLedgerChanged is emitted after every ledger mutation.
	TaskTypeLedgerChanged = "ledger:changed"
	// TaskTypeIntegrityScan verifies stored running balances.
	TaskTypeIntegrityScan = "ledger:integrity_scan"
)

// NewLedgerChangedTask wraps a ledger event in an Asynq task.
func NewLedgerChangedTask(event ledger.ChangedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerChanged, data), nil
}

// NewIntegrityScanTask builds the nightly integrity scan task. It
// carries no payload; the scan always covers every customer.
func NewIntegrityScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIntegrityScan, nil)
}
