package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// fakeOrderRepo holds orders in memory. Update applies changes under the
// same lock a row lock would give, and customers stands in for the
// customer foreign key.
type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[int64]*models.Order
	nextID    int64
	createErr error
	creates   int
	customers *fakeCustomerRepo
	// beforeLock runs at the start of Update, before the order is locked.
	beforeLock func()
}

func newFakeOrderRepo(customers *fakeCustomerRepo) *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*models.Order), customers: customers}
}

func (r *fakeOrderRepo) customerExists(id int64) bool {
	if r.customers == nil {
		return true
	}
	_, ok := r.customers.customers[id]
	return ok
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if !r.customerExists(order.CustomerID) {
		return apperrors.NewNotFoundError("customer", order.CustomerID)
	}
	r.creates++
	r.nextID++
	order.ID = r.nextID
	for i := range order.Items {
		order.Items[i].ID = r.nextID*100 + int64(i)
		order.Items[i].OrderID = r.nextID
	}
	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (r *fakeOrderRepo) List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error) {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.orders))
	for id := range r.orders {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]*models.Order, 0)
	for i, id := range ids {
		if i < filter.Skip || len(result) >= filter.Limit {
			continue
		}
		order, _ := r.GetByID(ctx, id)
		result = append(result, order)
	}
	return result, nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, id int64, apply func(*models.Order) error) (*models.Order, error) {
	if r.beforeLock != nil {
		hook := r.beforeLock
		r.beforeLock = nil
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("order", id)
	}

	working := *stored
	working.Items = append([]models.OrderItem(nil), stored.Items...)
	if err := apply(&working); err != nil {
		return nil, err
	}
	if !r.customerExists(working.CustomerID) {
		return nil, apperrors.NewNotFoundError("customer", working.CustomerID)
	}

	saved := working
	r.orders[id] = &saved
	return &working, nil
}

func (r *fakeOrderRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return apperrors.NewNotFoundError("order", id)
	}
	delete(r.orders, id)
	return nil
}

type fakeProductRepo struct {
	products map[int64]*models.Product
	lookups  [][]int64
}

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[int64]*models.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) Create(ctx context.Context, p *models.Product) error {
	p.ID = int64(len(r.products) + 1)
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("product", id)
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProductRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	r.lookups = append(r.lookups, ids)
	found := make(map[int64]*models.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (r *fakeProductRepo) List(ctx context.Context, filter models.ListFilter) ([]*models.Product, error) {
	return nil, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, p *models.Product) error {
	if _, ok := r.products[p.ID]; !ok {
		return apperrors.NewNotFoundError("product", p.ID)
	}
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id int64) error {
	delete(r.products, id)
	return nil
}

type fakeCustomerRepo struct {
	customers map[int64]*models.Customer
}

func newFakeCustomerRepo(ids ...int64) *fakeCustomerRepo {
	r := &fakeCustomerRepo{customers: make(map[int64]*models.Customer)}
	for _, id := range ids {
		r.customers[id] = &models.Customer{ID: id, Name: "Customer", Email: "c@example.com"}
	}
	return r
}

func (r *fakeCustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	for _, existing := range r.customers {
		if existing.Email == c.Email {
			return apperrors.NewConflictError("email", "email already registered")
		}
	}
	c.ID = int64(len(r.customers) + 1)
	r.customers[c.ID] = c
	return nil
}

func (r *fakeCustomerRepo) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("customer", id)
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCustomerRepo) List(ctx context.Context, filter models.ListFilter) ([]*models.Customer, error) {
	return nil, nil
}

func (r *fakeCustomerRepo) Update(ctx context.Context, c *models.Customer) error {
	r.customers[c.ID] = c
	return nil
}

func (r *fakeCustomerRepo) Delete(ctx context.Context, id int64) error {
	delete(r.customers, id)
	return nil
}

type fakeCache struct {
	orders  map[int64]*models.Order
	deleted []int64
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{orders: make(map[int64]*models.Order)}
}

func (c *fakeCache) Get(ctx context.Context, id int64) (*models.Order, error) {
	return c.orders[id], nil
}

func (c *fakeCache) Set(ctx context.Context, order *models.Order) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.orders[order.ID] = order
	return nil
}

func (c *fakeCache) Add(ctx context.Context, order *models.Order) error {
	if _, ok := c.orders[order.ID]; ok {
		return nil
	}
	return c.Set(ctx, order)
}

func (c *fakeCache) Delete(ctx context.Context, id int64) error {
	c.deleted = append(c.deleted, id)
	delete(c.orders, id)
	return nil
}

type fakePublisher struct {
	created []int64
	updated []models.OrderStatus
	deleted []int64
	err     error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.created = append(p.created, order.ID)
	return p.err
}

func (p *fakePublisher) PublishOrderUpdated(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	p.updated = append(p.updated, previousStatus)
	return p.err
}

func (p *fakePublisher) PublishOrderDeleted(ctx context.Context, orderID int64) error {
	p.deleted = append(p.deleted, orderID)
	return p.err
}

var errDatabaseDown = errors.New("database down")

type serviceFixture struct {
	orders    *fakeOrderRepo
	products  *fakeProductRepo
	customers *fakeCustomerRepo
	cache     *fakeCache
	publisher *fakePublisher
	config    *config.Config
	service   *OrderService
}

func newServiceFixture(features config.FeatureFlags) *serviceFixture {
	customers := newFakeCustomerRepo(1)
	f := &serviceFixture{
		orders: newFakeOrderRepo(customers),
		products: newFakeProductRepo(
			&models.Product{ID: 10, Name: "Widget", Price: dec("5.5"), Status: models.ProductStatusActive},
			&models.Product{ID: 11, Name: "Gadget", Price: dec("2.25"), Status: models.ProductStatusActive},
		),
		customers: customers,
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		config:    &config.Config{Features: features},
	}
	f.service = NewOrderService(f.orders, f.products, f.cache, f.publisher, nil, f.config, logging.Discard())
	return f
}
