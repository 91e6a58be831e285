package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

var (
	_ OrderRepository    = (*PostgresOrderRepository)(nil)
	_ ProductRepository  = (*PostgresProductRepository)(nil)
	_ CustomerRepository = (*PostgresCustomerRepository)(nil)
	_ OrderCache         = (*RedisOrderCache)(nil)
)

// OrderRepository persists orders together with their line items.
type OrderRepository interface {
	// Create writes the order header and every item in one transaction and
	// fills in the generated identifiers. Nothing is written on error.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error)
	// Update locks the order, hands the stored header to apply and writes
	// the mutable fields back in the same transaction. An error from apply
	// aborts the update. Items are never touched.
	Update(ctx context.Context, id int64, apply func(order *models.Order) error) (*models.Order, error)
	Delete(ctx context.Context, id int64) error
}

// ProductRepository is the product catalog.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	// GetByIDs returns the products that exist among ids, keyed by id.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id int64) error
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id int64) (*models.Customer, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id int64) error
}

// OrderCache defines caching operations for orders.
type OrderCache interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
	// Set stores order, replacing any cached copy.
	Set(ctx context.Context, order *models.Order) error
	// Add stores order only when nothing is cached for it yet.
	Add(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id int64) error
}

// Postgres error codes the repositories translate.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

func pqErrorCode(err error) (string, *pq.Error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr
	}
	return "", nil
}
