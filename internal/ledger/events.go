package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChangedEvent announces that a customer's ledger was mutated and the
// cascade settled. AnchorEntryID points at the entry whose balance the
// cascade was based on; nil means the whole ledger was in scope.
type ChangedEvent struct {
	EventID       string    `json:"event_id"`
	CustomerID    int64     `json:"customer_id"`
	AnchorEntryID *int64    `json:"anchor_entry_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers ChangedEvents to external listeners, e.g. cache
// invalidation. Delivery is fire-and-forget: it happens after commit and
// failures never affect the mutation outcome.
type Notifier interface {
	LedgerChanged(ctx context.Context, event ChangedEvent) error
}

func newChangedEvent(customerID int64, anchor *Entry, at time.Time) ChangedEvent {
	event := ChangedEvent{
		EventID:    uuid.NewString(),
		CustomerID: customerID,
		OccurredAt: at,
	}
	if anchor != nil {
		id := anchor.ID
		event.AnchorEntryID = &id
	}
	return event
}
