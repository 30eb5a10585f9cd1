package jobs

import (
	"context"
	"log/slog"

	"github.com/amanat-app/ledger/internal/ledger"
)

// QueueNotifier publishes ledger change events onto the job queue. It
// satisfies ledger.Notifier so services stay unaware of Asynq.
type QueueNotifier struct {
	client *Client
	logger *slog.Logger
}

func NewQueueNotifier(client *Client, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, logger: logger}
}

// LedgerChanged enqueues the event for asynchronous processing.
func (n *QueueNotifier) LedgerChanged(ctx context.Context, event ledger.ChangedEvent) error {
	info, err := n.client.EnqueueLedgerChanged(ctx, event)
	if err != nil {
		return err
	}
	if n.logger != nil {
		n.logger.Debug("ledger change enqueued",
			slog.String("task_id", info.ID),
			slog.Int64("customer_id", event.CustomerID))
	}
	return nil
}
