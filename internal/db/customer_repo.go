package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"aigrowth/internal/types"
)

const customerColumns = `id, name, email, COALESCE(phone, ''), COALESCE(company, ''), active, created_at`

// CustomerRepository persists agency customers. Email is unique.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository binds the repository to a pool or transaction.
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func scanCustomer(row pgx.Row) (*types.Customer, error) {
	var c types.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByEmail returns the customer with exactly this email or a
// not_found_customer error.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*types.Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE email = $1`,
		email,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get customer by email", err)
	}
	return c, nil
}

// Create inserts a customer and returns it with its generated id.
// A duplicate email yields conflict_email_exists without aborting the
// surrounding transaction, so callers can re-read the winner.
func (r *CustomerRepository) Create(ctx context.Context, in types.CustomerInput) (*types.Customer, error) {
	company := in.Company
	if company == "" {
		company = types.NotInformedCompany
	}

	c, err := scanCustomer(r.db.QueryRow(ctx,
		`INSERT INTO customers (name, email, phone, company, active, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, TRUE, NOW())
		 ON CONFLICT (email) DO NOTHING
		 RETURNING `+customerColumns,
		in.Name, in.Email, in.Phone, company,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return nil, types.NewAppError(types.ErrCodeConflictEmail, "customer email already registered", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create customer", err)
	}
	return c, nil
}

// GetByID is used by read endpoints.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*types.Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get customer", err)
	}
	return c, nil
}
