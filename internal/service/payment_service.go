package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

// PaymentService applies payment outcomes reported by the payments system
// to orders.
type PaymentService struct {
	orderService *OrderService
	logger       *logrus.Entry
}

// NewPaymentService creates a new payment service.
func NewPaymentService(orderService *OrderService, logger *logrus.Entry) *PaymentService {
	return &PaymentService{
		orderService: orderService,
		logger:       logger,
	}
}

// ApplyPaymentStatus records the payment status of an order. Only
// payment_status changes; totals and items are left alone.
func (s *PaymentService) ApplyPaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) (*models.Order, error) {
	if orderID <= 0 {
		return nil, apperrors.NewValidationError("order_id", "order ID is required")
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("payment_status", "invalid payment status")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       orderID,
		"payment_status": status,
	}).Info("Applying payment status")

	order, err := s.orderService.UpdateOrder(ctx, orderID, &models.UpdateOrderRequest{PaymentStatus: &status})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		}).Error("Failed to apply payment status")
		return nil, err
	}

	return order, nil
}
