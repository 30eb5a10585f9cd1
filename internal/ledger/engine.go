package ledger

import "context"

// CascadeStore is the slice of the transactional store the engine needs.
// Both methods must operate within the caller's transaction scope so the
// cascade commits or rolls back as one unit.
type CascadeStore interface {
	// ListEntriesAfter returns the customer's entries with id > afterID,
	// ordered by id ascending. afterID 0 means every entry.
	ListEntriesAfter(ctx context.Context, customerID, afterID int64) ([]Entry, error)
	UpdateRemaining(ctx context.Context, entryID, remaining int64) error
}

// Engine recomputes running balances for the entries after an anchor.
// The anchor itself is never touched: the caller must have computed and
// persisted the anchor's own balance before invoking the engine.
type Engine struct{}

// Recalculate rewrites RemainingAmount for every entry of customerID after
// anchor, chaining each balance from the previous one. A nil anchor means
// base 0 and every entry in scope. Entries whose balance is already correct
// are not written, so repeated invocations are idempotent and a cascade
// with nothing after the anchor performs zero writes.
func (Engine) Recalculate(ctx context.Context, store CascadeStore, customerID int64, anchor *Entry) error {
	var base, afterID int64
	if anchor != nil {
		if anchor.CustomerID != customerID {
			return ErrAnchorMismatch
		}
		base = anchor.RemainingAmount
		afterID = anchor.ID
	}

	entries, err := store.ListEntriesAfter(ctx, customerID, afterID)
	if err != nil {
		return persistence("list entries after anchor", err)
	}

	for _, entry := range entries {
		if entry.CustomerID != customerID || entry.ID <= afterID {
			return ErrInvariantViolation
		}
		next := entry.balanceAfter(base)
		if next != entry.RemainingAmount {
			if err := store.UpdateRemaining(ctx, entry.ID, next); err != nil {
				return persistence("update remaining amount", err)
			}
		}
		base = next
	}

	return nil
}
