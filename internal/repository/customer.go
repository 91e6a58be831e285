package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

// PostgresCustomerRepository implements CustomerRepository using PostgreSQL.
type PostgresCustomerRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresCustomerRepository(db *sql.DB, logger *logrus.Entry) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{db: db, logger: logger}
}

const customerColumns = `id, name, email, phone, address, created_at, updated_at`

func (r *PostgresCustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		c.Name, c.Email, c.Phone, c.Address,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqUniqueViolation {
			return duplicateEmail(c.Email)
		}
		r.logger.WithField("error", err.Error()).Error("Failed to insert customer")
		return fmt.Errorf("could not create customer: %w", err)
	}

	r.logger.WithField("customer_id", c.ID).Info("Customer created")
	return nil
}

func (r *PostgresCustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("customer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve customer: %w", err)
	}
	return c, nil
}

func (r *PostgresCustomerRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY id LIMIT $1 OFFSET $2`,
		filter.Limit, filter.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("could not list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*models.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *PostgresCustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Address,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError("customer", c.ID)
	}
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqUniqueViolation {
			return duplicateEmail(c.Email)
		}
		return fmt.Errorf("could not update customer: %w", err)
	}

	c.UpdatedAt = &updatedAt
	r.logger.WithField("customer_id", c.ID).Info("Customer updated")
	return nil
}

// Delete removes a customer. Customers with orders are kept and a
// ConflictError is returned.
func (r *PostgresCustomerRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return apperrors.NewConflictError("customer", fmt.Sprintf("customer %d has existing orders", id))
		}
		return fmt.Errorf("could not delete customer: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("customer", id)
	}

	r.logger.WithField("customer_id", id).Info("Customer deleted")
	return nil
}

func duplicateEmail(email string) error {
	return apperrors.NewConflictError("email", fmt.Sprintf("email %s is already registered", email))
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var c models.Customer
	var updatedAt sql.NullTime

	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}
	return &c, nil
}
