package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a malformed input; the mutation never started.
	ErrValidation = errors.New("ledger: invalid input")
	// ErrEntryNotFound indicates a missing entry. Fatal, not retried.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrCustomerNotFound indicates a missing customer. Fatal, not retried.
	ErrCustomerNotFound = errors.New("ledger: customer not found")
	// ErrAnchorMismatch indicates the anchor entry does not belong to the
	// customer being recalculated. A caller bug, never retried.
	ErrAnchorMismatch = errors.New("ledger: anchor does not belong to customer")
	// ErrInvariantViolation indicates the cascade fetched an entry outside
	// its scope. A programming defect; surfaced, never silently corrected.
	ErrInvariantViolation = errors.New("ledger: entry outside cascade scope")
)

// PersistenceError wraps a storage failure. The transaction rolled back in
// full, so the caller may retry the whole mutation as one unit.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
