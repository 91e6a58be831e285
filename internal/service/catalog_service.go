package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/repository"
)

// ProductService manages the product catalog.
type ProductService struct {
	repo   repository.ProductRepository
	logger *logrus.Entry
}

func NewProductService(repo repository.ProductRepository, logger *logrus.Entry) *ProductService {
	return &ProductService{repo: repo, logger: logger}
}

func (s *ProductService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Cost:        req.Cost,
		Stock:       req.Stock,
		Category:    req.Category,
		Supplier:    req.Supplier,
		Status:      req.Status,
	}
	if product.Status == "" {
		product.Status = models.ProductStatusActive
	}

	if err := ValidateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) ListProducts(ctx context.Context, skip, limit int) ([]*models.Product, error) {
	skip, limit, err := NormalizeListFilter(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, models.ListFilter{Skip: skip, Limit: limit})
}

// UpdateProduct applies the present fields. Existing orders keep the price
// they were created with.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(product)
	if err := ValidateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": id,
		"price":      product.Price.String(),
	}).Debug("Product updated")
	return product, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// CustomerService manages customers.
type CustomerService struct {
	repo   repository.CustomerRepository
	logger *logrus.Entry
}

func NewCustomerService(repo repository.CustomerRepository, logger *logrus.Entry) *CustomerService {
	return &CustomerService{repo: repo, logger: logger}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, req *models.CreateCustomerRequest) (*models.Customer, error) {
	customer := &models.Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}

	if err := ValidateCustomer(customer); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CustomerService) ListCustomers(ctx context.Context, skip, limit int) ([]*models.Customer, error) {
	skip, limit, err := NormalizeListFilter(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, models.ListFilter{Skip: skip, Limit: limit})
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, req *models.UpdateCustomerRequest) (*models.Customer, error) {
	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(customer)
	if err := ValidateCustomer(customer); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.WithField("customer_id", id).Debug("Customer updated")
	return customer, nil
}

func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
