package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListForCustomer(ctx context.Context, customerID int64) ([]Entry, error)
}

// Service orchestrates debt entry mutations. Every create, update and
// delete resolves its anchor, writes its own balance and runs the cascade
// inside one transaction, holding the customer's row lock throughout so
// concurrent mutations against the same ledger serialize.
type Service struct {
	repo     RepositoryPort
	engine   Engine
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. notifier may be nil.
func NewService(repo RepositoryPort, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateEntry records a charge or payment. The new entry's balance is
// computed from the customer's latest entry; nothing follows a fresh entry,
// so no cascade is needed.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (Entry, error) {
	if err := s.validate.Struct(input); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if input.AmountDue == 0 && input.AmountPaid == 0 && input.CommissionAmount == 0 {
		return Entry{}, fmt.Errorf("%w: entry must carry an amount", ErrValidation)
	}
	dueDate, err := s.resolveDueDate(input.DueDate)
	if err != nil {
		return Entry{}, err
	}

	var created Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockCustomer(ctx, input.CustomerID); err != nil {
			return storeErr("lock customer", err)
		}
		anchor, err := tx.LatestEntry(ctx, input.CustomerID)
		if err != nil {
			return storeErr("resolve latest entry", err)
		}
		var base int64
		if anchor != nil {
			base = anchor.RemainingAmount
		}
		entry := Entry{
			CustomerID:       input.CustomerID,
			AmountDue:        input.AmountDue,
			AmountPaid:       input.AmountPaid,
			CommissionAmount: input.CommissionAmount,
			DueDate:          dueDate,
			Notes:            input.Notes,
		}
		entry.RemainingAmount = entry.balanceAfter(base)
		created, err = tx.InsertEntry(ctx, entry)
		return storeErr("insert entry", err)
	})
	if err != nil {
		return Entry{}, err
	}

	s.publish(ctx, created.CustomerID, &created)
	return created, nil
}

// UpdateEntry rewrites an entry's amounts, due date or notes, recomputes
// its own balance from its predecessor and cascades to every later entry.
// A commission provided here replaces the stored value; omitted means the
// stored commission is reused.
func (s *Service) UpdateEntry(ctx context.Context, input UpdateEntryInput) (Entry, error) {
	if err := s.validate.Struct(input); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var updated Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntry(ctx, input.EntryID)
		if err != nil {
			return storeErr("fetch entry", err)
		}
		if err := tx.LockCustomer(ctx, current.CustomerID); err != nil {
			return storeErr("lock customer", err)
		}
		// A mutation may have committed while this one waited on the lock;
		// re-read so the rewrite starts from the entry as last committed.
		current, err = tx.GetEntry(ctx, input.EntryID)
		if err != nil {
			return storeErr("fetch entry", err)
		}

		updated = *current
		if input.AmountDue != nil {
			updated.AmountDue = *input.AmountDue
		}
		if input.AmountPaid != nil {
			updated.AmountPaid = *input.AmountPaid
		}
		if input.CommissionAmount != nil {
			updated.CommissionAmount = *input.CommissionAmount
		}
		if input.DueDate != nil {
			dueDate, err := s.resolveDueDate(*input.DueDate)
			if err != nil {
				return err
			}
			updated.DueDate = dueDate
		}
		if input.Notes != nil {
			updated.Notes = input.Notes
		}
		if updated.AmountDue == 0 && updated.AmountPaid == 0 && updated.CommissionAmount == 0 {
			return fmt.Errorf("%w: entry must carry an amount", ErrValidation)
		}

		predecessor, err := tx.LatestEntryBefore(ctx, updated.CustomerID, updated.ID)
		if err != nil {
			return storeErr("resolve predecessor", err)
		}
		var base int64
		if predecessor != nil {
			base = predecessor.RemainingAmount
		}
		updated.RemainingAmount = updated.balanceAfter(base)
		if err := tx.UpdateEntry(ctx, updated); err != nil {
			return storeErr("update entry", err)
		}

		// The cascade anchors on the entry just updated, carrying its fresh
		// balance; anchoring on the predecessor would recompute the entry
		// itself a second time.
		return s.engine.Recalculate(ctx, tx, updated.CustomerID, &updated)
	})
	if err != nil {
		return Entry{}, err
	}

	s.publish(ctx, updated.CustomerID, &updated)
	return updated, nil
}

// DeleteEntry removes an entry and cascades from its predecessor, so every
// later entry rebases across the gap. Sequence ids are never reused.
func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	var customerID int64
	var anchor *Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntry(ctx, id)
		if err != nil {
			return storeErr("fetch entry", err)
		}
		if err := tx.LockCustomer(ctx, entry.CustomerID); err != nil {
			return storeErr("lock customer", err)
		}
		customerID = entry.CustomerID

		anchor, err = tx.LatestEntryBefore(ctx, entry.CustomerID, entry.ID)
		if err != nil {
			return storeErr("resolve predecessor", err)
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return storeErr("delete entry", err)
		}
		return s.engine.Recalculate(ctx, tx, entry.CustomerID, anchor)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, customerID, anchor)
	return nil
}

// RecalculateCustomer rebuilds every balance of the customer from base 0.
// An operational escape hatch; routine mutations never need it.
func (s *Service) RecalculateCustomer(ctx context.Context, customerID int64) error {
	if customerID <= 0 {
		return fmt.Errorf("%w: customer id required", ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockCustomer(ctx, customerID); err != nil {
			return storeErr("lock customer", err)
		}
		return s.engine.Recalculate(ctx, tx, customerID, nil)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, customerID, nil)
	return nil
}

// GetEntry returns a single entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns the customer's ledger ordered by sequence.
func (s *Service) ListEntries(ctx context.Context, customerID int64) ([]Entry, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer id required", ErrValidation)
	}
	return s.repo.ListForCustomer(ctx, customerID)
}

func (s *Service) resolveDueDate(provided time.Time) (time.Time, error) {
	now := s.now()
	if provided.IsZero() {
		return now, nil
	}
	if provided.After(now) {
		return time.Time{}, fmt.Errorf("%w: due date cannot be in the future", ErrValidation)
	}
	return provided, nil
}

func (s *Service) publish(ctx context.Context, customerID int64, anchor *Entry) {
	if s.notifier == nil {
		return
	}
	event := newChangedEvent(customerID, anchor, s.now())
	if err := s.notifier.LedgerChanged(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("ledger changed notification failed",
			slog.Int64("customer_id", customerID), slog.Any("error", err))
	}
}

// storeErr classifies repository failures: domain sentinels pass through
// untouched, anything else is a transient persistence failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	for _, sentinel := range []error{ErrEntryNotFound, ErrCustomerNotFound, ErrAnchorMismatch, ErrInvariantViolation, ErrValidation} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return persistence(op, err)
}
