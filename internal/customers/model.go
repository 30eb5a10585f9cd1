package customers

import "time"

// Customer owns a sequence of debt entries. Balance figures are derived
// from the ledger and never stored on the customer row.
type Customer struct {
	ID        int64
	Name      string
	Phone     *string
	Address   *string
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerWithBalance decorates a customer with ledger-derived fields:
// the latest entry's remaining balance (nil when the ledger is empty) and
// how many days ago the ledger last reached zero.
type CustomerWithBalance struct {
	Customer
	RemainingAmount  *int64
	DaysSinceSettled *int
}

// CreateCustomerInput carries the fields accepted on registration.
type CreateCustomerInput struct {
	Name    string
	Phone   *string
	Address *string
	Notes   *string
}

// UpdateCustomerInput carries partial updates; nil fields are untouched.
type UpdateCustomerInput struct {
	Name    *string
	Phone   *string
	Address *string
	Notes   *string
}

// ListCustomersRequest filters and pages customer listings.
type ListCustomersRequest struct {
	Name    string // substring match
	Phone   string // exact match
	Page    int
	PerPage int
}
