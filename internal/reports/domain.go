package reports

import "time"

// Summary aggregates ledger activity over an inclusive due-date range.
// Outstanding is not range-bound: it is the sum of every customer's
// current remaining balance.
type Summary struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	AmountDue   int64     `json:"amount_due"`
	AmountPaid  int64     `json:"amount_paid"`
	Commission  int64     `json:"commission"`
	Outstanding int64     `json:"outstanding"`
}

// Request selects the reporting window. Zero dates fall back to the
// earliest entry on record and today, respectively.
type Request struct {
	StartDate time.Time
	EndDate   time.Time
}
