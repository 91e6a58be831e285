package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

// CatalogLookups returns the product ids whose catalog price is needed to
// price req, deduplicated and in first-seen order. A line needs the catalog
// only when it carries no explicit price.
func CatalogLookups(req *models.CreateOrderRequest) []int64 {
	seen := make(map[int64]struct{}, len(req.Items))
	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Price != nil {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// PriceOrder resolves every line of a validated request against catalog and
// returns an unsaved pending order whose totals satisfy
// subtotal = sum(line totals) and total = subtotal + tax + shipping.
//
// A line without a price takes the catalog price; a line without a total
// gets price * quantity. An explicit total that disagrees with
// price * quantity is rejected unless allowOverride is set, in which case
// the explicit total is kept as given.
func PriceOrder(req *models.CreateOrderRequest, catalog map[int64]*models.Product, allowOverride bool) (*models.Order, error) {
	order := &models.Order{
		CustomerID:    req.CustomerID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Tax:           decimalOrZero(req.Tax),
		Shipping:      decimalOrZero(req.Shipping),
		Items:         make([]models.OrderItem, 0, len(req.Items)),
	}

	for i, line := range req.Items {
		var price decimal.Decimal
		if line.Price != nil {
			price = *line.Price
		} else {
			product, ok := catalog[line.ProductID]
			if !ok {
				return nil, apperrors.NewProductNotFoundError(i, line.ProductID)
			}
			price = product.Price
		}

		computed := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total := computed
		if line.Total != nil {
			if !allowOverride && !line.Total.Equal(computed) {
				return nil, apperrors.NewItemValidationError(i, line.ProductID, fmt.Sprintf(
					"total %s does not match price %s x quantity %d",
					line.Total.String(), price.String(), line.Quantity,
				))
			}
			total = *line.Total
		}

		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     price,
			Total:     total,
		})
	}

	order.CalculateTotal()
	return order, nil
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
