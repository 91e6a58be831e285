package service

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

const (
	maxListLimit = 100
	// Quantities and stock are stored as Postgres INTEGER.
	maxQuantity = math.MaxInt32
)

var validate = validator.New()

// ValidateCreateOrderRequest validates an order creation request.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if req == nil {
		return apperrors.NewValidationError("body", "request body is required")
	}

	if req.CustomerID <= 0 {
		return apperrors.NewValidationError("customer_id", "customer ID is required")
	}

	if len(req.Items) == 0 {
		return apperrors.NewValidationError("items", "at least one item is required")
	}

	if err := validateAmount("tax", req.Tax); err != nil {
		return err
	}
	if err := validateAmount("shipping", req.Shipping); err != nil {
		return err
	}

	for i := range req.Items {
		if err := validateOrderItem(&req.Items[i], i); err != nil {
			return err
		}
	}

	return nil
}

func validateOrderItem(item *models.OrderItemRequest, index int) error {
	if item.ProductID <= 0 {
		return apperrors.NewItemValidationError(index, item.ProductID, "product ID is required for item")
	}

	if item.Quantity <= 0 {
		return apperrors.NewItemValidationError(index, item.ProductID, "quantity must be positive")
	}

	if item.Quantity > maxQuantity {
		return apperrors.NewItemValidationError(index, item.ProductID, "quantity is too large")
	}

	if item.Price != nil && item.Price.IsNegative() {
		return apperrors.NewItemValidationError(index, item.ProductID, "price cannot be negative")
	}

	if item.Total != nil && item.Total.IsNegative() {
		return apperrors.NewItemValidationError(index, item.ProductID, "total cannot be negative")
	}

	return nil
}

func validateAmount(field string, amount *decimal.Decimal) error {
	if amount != nil && amount.IsNegative() {
		return apperrors.NewValidationError(field, field+" cannot be negative")
	}
	return nil
}

// ValidateUpdateOrderRequest checks the fields present in an update.
// Status transitions are checked against the stored order by the service.
func ValidateUpdateOrderRequest(req *models.UpdateOrderRequest) error {
	if req == nil {
		return apperrors.NewValidationError("body", "request body is required")
	}

	if req.CustomerID != nil && *req.CustomerID <= 0 {
		return apperrors.NewValidationError("customer_id", "customer ID must be positive")
	}

	if req.Status != nil && !req.Status.Valid() {
		return apperrors.NewValidationError("status", "invalid order status")
	}

	if req.PaymentStatus != nil && !req.PaymentStatus.Valid() {
		return apperrors.NewValidationError("payment_status", "invalid payment status")
	}

	if err := validateAmount("tax", req.Tax); err != nil {
		return err
	}
	return validateAmount("shipping", req.Shipping)
}

// ValidateProduct validates a product before it is written.
func ValidateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewValidationError("name", "name is required")
	}

	if p.Price.IsNegative() {
		return apperrors.NewValidationError("price", "price cannot be negative")
	}

	if p.Cost.IsNegative() {
		return apperrors.NewValidationError("cost", "cost cannot be negative")
	}

	if p.Stock < 0 {
		return apperrors.NewValidationError("stock", "stock cannot be negative")
	}

	if p.Stock > maxQuantity {
		return apperrors.NewValidationError("stock", "stock is too large")
	}

	if !p.Status.Valid() {
		return apperrors.NewValidationError("status", "invalid product status")
	}

	return nil
}

// ValidateCustomer validates a customer before it is written.
func ValidateCustomer(c *models.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.NewValidationError("name", "name is required")
	}

	if c.Email == "" {
		return apperrors.NewValidationError("email", "email is required")
	}

	if err := validate.Var(c.Email, "email"); err != nil {
		return apperrors.NewValidationError("email", "invalid email address")
	}

	return nil
}

// NormalizeListFilter applies the default and maximum page size.
func NormalizeListFilter(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, apperrors.NewValidationError("skip", "skip cannot be negative")
	}

	if limit < 0 {
		return 0, 0, apperrors.NewValidationError("limit", "limit cannot be negative")
	}

	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	return skip, limit, nil
}
