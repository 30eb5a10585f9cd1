package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amanat-app/ledger/internal/shared"
)

// ErrNotFound indicates the customer does not exist.
var ErrNotFound = errors.New("customers: not found")

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const balanceJoin = `
LEFT JOIN LATERAL (
	SELECT d.remaining_amount
	FROM customer_debts d
	WHERE d.customer_id = c.id
	ORDER BY d.id DESC
	LIMIT 1
) latest ON TRUE
LEFT JOIN LATERAL (
	SELECT (CURRENT_DATE - MAX(d.due_date))::int AS days_since_settled
	FROM customer_debts d
	WHERE d.customer_id = c.id AND d.remaining_amount = 0
) settled ON TRUE`

// Create inserts a customer.
func (r *Repository) Create(ctx context.Context, input CreateCustomerInput) (Customer, error) {
	customer := Customer{
		Name:    input.Name,
		Phone:   input.Phone,
		Address: input.Address,
		Notes:   input.Notes,
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, phone, address, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		input.Name, nullText(input.Phone), nullText(input.Address), nullText(input.Notes),
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Get retrieves a customer with its derived balance fields.
func (r *Repository) Get(ctx context.Context, id int64) (*CustomerWithBalance, error) {
	row := r.pool.QueryRow(ctx, `SELECT c.id, c.name, c.phone, c.address, c.notes, c.created_at, c.updated_at,
	latest.remaining_amount, settled.days_since_settled
FROM customers c`+balanceJoin+`
WHERE c.id = $1`, id)

	customer, err := scanWithBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// List returns customers matching the filter together with the total count.
// Name filters by substring, phone by exact value (the lookups the original
// shop workflow needs). Pages are cut under the same Arabic collation the
// service sorts with; requires an ICU-enabled PostgreSQL build.
func (r *Repository) List(ctx context.Context, req ListCustomersRequest) ([]CustomerWithBalance, int, error) {
	where := ""
	var args []any
	argNum := 1
	if req.Name != "" {
		where += fmt.Sprintf(" AND c.name ILIKE $%d", argNum)
		args = append(args, "%"+req.Name+"%")
		argNum++
	}
	if req.Phone != "" {
		where += fmt.Sprintf(" AND c.phone = $%d", argNum)
		args = append(args, req.Phone)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers c WHERE 1=1"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT c.id, c.name, c.phone, c.address, c.notes, c.created_at, c.updated_at,
	latest.remaining_amount, settled.days_since_settled
FROM customers c` + balanceJoin + `
WHERE 1=1` + where + `
ORDER BY c.name COLLATE "ar-x-icu" ASC, c.id ASC`
	if req.PerPage > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		page := shared.NewPagination(req.Page, req.PerPage, total)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []CustomerWithBalance
	for rows.Next() {
		customer, err := scanWithBalance(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, *customer)
	}
	return customers, total, rows.Err()
}

// Update applies a partial update. Absent fields keep their stored value.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateCustomerInput) error {
	query := "UPDATE customers SET updated_at = NOW()"
	var args []any
	argNum := 1
	if input.Name != nil {
		query += fmt.Sprintf(", name = $%d", argNum)
		args = append(args, *input.Name)
		argNum++
	}
	if input.Phone != nil {
		query += fmt.Sprintf(", phone = $%d", argNum)
		args = append(args, *input.Phone)
		argNum++
	}
	if input.Address != nil {
		query += fmt.Sprintf(", address = $%d", argNum)
		args = append(args, *input.Address)
		argNum++
	}
	if input.Notes != nil {
		query += fmt.Sprintf(", notes = $%d", argNum)
		args = append(args, *input.Notes)
		argNum++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argNum)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a customer; the FK cascade removes its ledger entries.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWithBalance(row pgx.Row) (*CustomerWithBalance, error) {
	var customer CustomerWithBalance
	var phone, address, notes pgtype.Text
	var balance pgtype.Int8
	var daysSettled pgtype.Int4
	err := row.Scan(
		&customer.ID, &customer.Name, &phone, &address, &notes,
		&customer.CreatedAt, &customer.UpdatedAt, &balance, &daysSettled,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		customer.Phone = &phone.String
	}
	if address.Valid {
		customer.Address = &address.String
	}
	if notes.Valid {
		customer.Notes = &notes.String
	}
	if balance.Valid {
		customer.RemainingAmount = &balance.Int64
	}
	if daysSettled.Valid {
		days := int(daysSettled.Int32)
		customer.DaysSinceSettled = &days
	}
	return &customer, nil
}

func nullText(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
