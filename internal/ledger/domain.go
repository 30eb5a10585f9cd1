package ledger

import "time"

// Entry is one line of a customer's debt ledger. Entries are ordered by ID
// ascending; that order, not DueDate, is authoritative for balance
// computation. DueDate is a business date and may be backdated.
type Entry struct {
	ID               int64
	CustomerID       int64
	AmountDue        int64
	AmountPaid       int64
	CommissionAmount int64
	RemainingAmount  int64
	DueDate          time.Time
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// balanceAfter applies the entry to a running balance. Overpayment is
// allowed; the result may go negative.
func (e Entry) balanceAfter(base int64) int64 {
	return base - e.AmountPaid + e.AmountDue + e.CommissionAmount
}

// CreateEntryInput describes a new charge or payment.
type CreateEntryInput struct {
	CustomerID       int64  `validate:"required,gt=0"`
	AmountDue        int64  `validate:"gte=0"`
	AmountPaid       int64  `validate:"gte=0"`
	CommissionAmount int64  `validate:"gte=0"`
	DueDate          time.Time
	Notes            *string `validate:"omitempty,max=1000"`
}

// UpdateEntryInput carries partial updates for an existing entry. Nil
// fields keep the stored value; CommissionAmount in particular is reused
// as-is when omitted and replaced when provided.
type UpdateEntryInput struct {
	EntryID          int64  `validate:"required,gt=0"`
	AmountDue        *int64 `validate:"omitempty,gte=0"`
	AmountPaid       *int64 `validate:"omitempty,gte=0"`
	CommissionAmount *int64 `validate:"omitempty,gte=0"`
	DueDate          *time.Time
	Notes            *string `validate:"omitempty,max=1000"`
}
