package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

// PostgresProductRepository implements ProductRepository using PostgreSQL.
type PostgresProductRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresProductRepository(db *sql.DB, logger *logrus.Entry) *PostgresProductRepository {
	return &PostgresProductRepository{db: db, logger: logger}
}

const productColumns = `id, name, description, price, cost, stock, category, supplier, status, created_at, updated_at`

func (r *PostgresProductRepository) Create(ctx context.Context, p *models.Product) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, cost, stock, category, supplier, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		p.Name, p.Description, p.Price, p.Cost, p.Stock, p.Category, p.Supplier, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqCheckViolation {
			return apperrors.NewValidationError("product", "violates catalog constraints")
		}
		r.logger.WithFields(logrus.Fields{
			"name":  p.Name,
			"error": err.Error(),
		}).Error("Failed to insert product")
		return fmt.Errorf("could not create product: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"product_id": p.ID,
		"price":      p.Price.String(),
	}).Info("Product created")
	return nil
}

func (r *PostgresProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve product: %w", err)
	}
	return p, nil
}

// GetByIDs loads every listed product in one round trip. Missing ids are
// simply absent from the result.
func (r *PostgresProductRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"requested": len(ids),
		"found":     len(products),
	}).Debug("Products resolved")
	return products, nil
}

func (r *PostgresProductRepository) List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id LIMIT $1 OFFSET $2`,
		filter.Limit, filter.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("could not list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *PostgresProductRepository) Update(ctx context.Context, p *models.Product) error {
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, cost = $5, stock = $6,
		    category = $7, supplier = $8, status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.Cost, p.Stock, p.Category, p.Supplier, p.Status,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError("product", p.ID)
	}
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqCheckViolation {
			return apperrors.NewValidationError("product", "violates catalog constraints")
		}
		return fmt.Errorf("could not update product: %w", err)
	}

	p.UpdatedAt = &updatedAt
	r.logger.WithField("product_id", p.ID).Info("Product updated")
	return nil
}

// Delete removes a product. Products still referenced by order lines are
// kept and a ConflictError is returned.
func (r *PostgresProductRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return apperrors.NewConflictError("product", fmt.Sprintf("product %d is referenced by existing orders", id))
		}
		return fmt.Errorf("could not delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("product", id)
	}

	r.logger.WithField("product_id", id).Info("Product deleted")
	return nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var updatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Cost,
		&p.Stock,
		&p.Category,
		&p.Supplier,
		&p.Status,
		&p.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}
