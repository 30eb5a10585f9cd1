package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amanat-app/ledger/internal/platform/db"
)

// Repository persists debt entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service and
// the recalculation engine. All methods run on one transaction; nothing is
// visible to other readers until commit.
type TxRepository interface {
	CascadeStore
	// LockCustomer takes the customer's row lock, serializing concurrent
	// mutations against the same ledger for the rest of the transaction.
	LockCustomer(ctx context.Context, customerID int64) error
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	// LatestEntry returns the customer's entry with the highest id, or nil
	// when the ledger is empty.
	LatestEntry(ctx context.Context, customerID int64) (*Entry, error)
	// LatestEntryBefore returns the nearest entry with id < beforeID, or nil.
	LatestEntryBefore(ctx context.Context, customerID, beforeID int64) (*Entry, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	UpdateEntry(ctx context.Context, entry Entry) error
	DeleteEntry(ctx context.Context, id int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside one db.WithTx transaction. Begin
// and commit failures surface as *PersistenceError; either every write in
// the scope lands or none do.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger: repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return storeErr("run tx", err)
}

// GetEntry fetches a single entry outside any transaction.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return getEntry(ctx, r.pool, id)
}

// ListForCustomer returns the customer's full ledger ordered by id.
func (r *Repository) ListForCustomer(ctx context.Context, customerID int64) ([]Entry, error) {
	return listEntriesAfter(ctx, r.pool, customerID, 0)
}

// CustomerIDsWithEntries lists customers that own at least one entry.
// Used by the integrity scan.
func (r *Repository) CustomerIDsWithEntries(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT customer_id FROM customer_debts ORDER BY customer_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepository) LockCustomer(ctx context.Context, customerID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM customers WHERE id=$1 FOR UPDATE`, customerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCustomerNotFound
	}
	return err
}

func (r *txRepository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return getEntry(ctx, r.tx, id)
}

func (r *txRepository) LatestEntry(ctx context.Context, customerID int64) (*Entry, error) {
	return queryOneEntry(ctx, r.tx, entryColumns+` FROM customer_debts
WHERE customer_id=$1 ORDER BY id DESC LIMIT 1`, customerID)
}

func (r *txRepository) LatestEntryBefore(ctx context.Context, customerID, beforeID int64) (*Entry, error) {
	return queryOneEntry(ctx, r.tx, entryColumns+` FROM customer_debts
WHERE customer_id=$1 AND id<$2 ORDER BY id DESC LIMIT 1`, customerID, beforeID)
}

func (r *txRepository) ListEntriesAfter(ctx context.Context, customerID, afterID int64) ([]Entry, error) {
	return listEntriesAfter(ctx, r.tx, customerID, afterID)
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO customer_debts
(customer_id, amount_due, amount_paid, commission_amount, due_date, notes, remaining_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		entry.CustomerID, entry.AmountDue, entry.AmountPaid, entry.CommissionAmount,
		entry.DueDate, nullText(entry.Notes), entry.RemainingAmount,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Entry{}, ErrCustomerNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, entry Entry) error {
	tag, err := r.tx.Exec(ctx, `UPDATE customer_debts
SET amount_due=$2, amount_paid=$3, commission_amount=$4, due_date=$5, notes=$6, remaining_amount=$7, updated_at=NOW()
WHERE id=$1`,
		entry.ID, entry.AmountDue, entry.AmountPaid, entry.CommissionAmount,
		entry.DueDate, nullText(entry.Notes), entry.RemainingAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) UpdateRemaining(ctx context.Context, entryID, remaining int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE customer_debts SET remaining_amount=$2, updated_at=NOW() WHERE id=$1`,
		entryID, remaining)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM customer_debts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so row mapping is
// shared between pooled reads and transactional reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `SELECT id, customer_id, amount_due, amount_paid, commission_amount, due_date, notes, remaining_amount, created_at, updated_at`

func getEntry(ctx context.Context, q querier, id int64) (*Entry, error) {
	entry, err := queryOneEntry(ctx, q, entryColumns+` FROM customer_debts WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func queryOneEntry(ctx context.Context, q querier, sql string, args ...any) (*Entry, error) {
	var entry Entry
	var notes pgtype.Text
	err := q.QueryRow(ctx, sql, args...).Scan(
		&entry.ID, &entry.CustomerID, &entry.AmountDue, &entry.AmountPaid,
		&entry.CommissionAmount, &entry.DueDate, &notes, &entry.RemainingAmount,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		entry.Notes = &notes.String
	}
	return &entry, nil
}

func listEntriesAfter(ctx context.Context, q querier, customerID, afterID int64) ([]Entry, error) {
	rows, err := q.Query(ctx, entryColumns+` FROM customer_debts
WHERE customer_id=$1 AND id>$2 ORDER BY id ASC`, customerID, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var notes pgtype.Text
		if err := rows.Scan(
			&entry.ID, &entry.CustomerID, &entry.AmountDue, &entry.AmountPaid,
			&entry.CommissionAmount, &entry.DueDate, &notes, &entry.RemainingAmount,
			&entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if notes.Valid {
			entry.Notes = &notes.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullText(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
