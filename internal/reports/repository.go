package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads aggregate figures straight from Postgres. All sums
// run server-side so a report is a constant number of round trips
// regardless of ledger size.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EarliestDueDate returns the due date of the oldest entry on record.
// ok is false when the ledger is empty.
func (r *Repository) EarliestDueDate(ctx context.Context) (time.Time, bool, error) {
	var earliest pgtype.Date
	err := r.pool.QueryRow(ctx, `SELECT MIN(due_date) FROM customer_debts`).Scan(&earliest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, fmt.Errorf("reports: earliest due date: %w", err)
	}
	if !earliest.Valid {
		return time.Time{}, false, nil
	}
	return earliest.Time, true, nil
}

// Totals sums due, paid and commission amounts for entries whose due
// date falls inside the inclusive range.
func (r *Repository) Totals(ctx context.Context, start, end time.Time) (due, paid, commission int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_due), 0),
			COALESCE(SUM(amount_paid), 0),
			COALESCE(SUM(commission_amount), 0)
		FROM customer_debts
		WHERE due_date >= $1 AND due_date <= $2`,
		start, end,
	).Scan(&due, &paid, &commission)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reports: range totals: %w", err)
	}
	return due, paid, commission, nil
}

// Outstanding sums the latest remaining balance of every customer.
func (r *Repository) Outstanding(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(latest.remaining_amount), 0)
		FROM customers c
		JOIN LATERAL (
			SELECT d.remaining_amount
			FROM customer_debts d
			WHERE d.customer_id = c.id
			ORDER BY d.id DESC
			LIMIT 1
		) latest ON true`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("reports: outstanding total: %w", err)
	}
	return total, nil
}
