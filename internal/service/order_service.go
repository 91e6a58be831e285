package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/repository"
)

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderUpdated(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
	PublishOrderDeleted(ctx context.Context, orderID int64) error
}

// OrderService handles order business logic.
type OrderService struct {
	orderRepo      repository.OrderRepository
	productRepo    repository.ProductRepository
	orderCache     repository.OrderCache
	eventPublisher OrderEventPublisher
	metrics        *metrics.Metrics
	config         *config.Config
	logger         *logrus.Entry
}

// NewOrderService creates a new order service. orderCache and eventPublisher
// may be nil when the matching feature is disabled.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	orderCache repository.OrderCache,
	eventPublisher OrderEventPublisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *logrus.Entry,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		orderCache:     orderCache,
		eventPublisher: eventPublisher,
		metrics:        m,
		config:         cfg,
		logger:         logger,
	}
}

// CreateOrder validates req, prices every line against the catalog and
// persists the order with its items atomically. On any error nothing is
// stored.
func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	order, err := s.createOrder(ctx, req)
	if err != nil {
		s.metrics.ObserveOrderFailure(err)
		return nil, err
	}
	s.metrics.ObserveOrderCreated(order.Total)
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	if err := ValidateCreateOrderRequest(req); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id": req.CustomerID,
		"item_count":  len(req.Items),
	}).Info("Creating order")

	catalog, err := s.productRepo.GetByIDs(ctx, CatalogLookups(req))
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"customer_id": req.CustomerID,
			"error":       err.Error(),
		}).Error("Failed to load catalog prices")
		return nil, err
	}

	order, err := PriceOrder(req, catalog, s.config.Features.AllowLineTotalOverride)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.WithFields(logrus.Fields{
			"customer_id": req.CustomerID,
			"error":       err.Error(),
		}).Error("Failed to create order")
		return nil, err
	}

	s.cacheOrder(ctx, order)

	if s.eventsEnabled() {
		if err := s.eventPublisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.WithFields(logrus.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			}).Error("Failed to publish order created event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"subtotal": order.Subtotal.String(),
		"total":    order.Total.String(),
	}).Info("Order created successfully")

	return order, nil
}

// GetOrder retrieves an order by ID, reading through the cache when enabled.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.logger.WithField("order_id", id).Debug("Getting order")

	if s.cachingEnabled() {
		order, err := s.orderCache.Get(ctx, id)
		if err == nil && order != nil {
			s.metrics.ObserveCache(true)
			return order, nil
		}
		s.metrics.ObserveCache(false)
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.fillCache(ctx, order)
	return order, nil
}

// ListOrders pages through orders by id.
func (s *OrderService) ListOrders(ctx context.Context, skip, limit int) ([]*models.Order, error) {
	skip, limit, err := NormalizeListFilter(skip, limit)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"skip":  skip,
		"limit": limit,
	}).Debug("Listing orders")

	return s.orderRepo.List(ctx, models.OrderListFilter{Skip: skip, Limit: limit})
}

// UpdateOrder applies the fields present in req to the locked stored order.
// Items and subtotal stay as created; when tax or shipping change the total
// is recomputed from them. Fields absent from req keep their stored values,
// including changes committed by concurrent updates.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, req *models.UpdateOrderRequest) (*models.Order, error) {
	if err := ValidateUpdateOrderRequest(req); err != nil {
		return nil, err
	}

	var previousStatus models.OrderStatus
	order, err := s.orderRepo.Update(ctx, id, func(order *models.Order) error {
		previousStatus = order.Status
		return applyOrderUpdate(order, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":        id,
		"previous_status": previousStatus,
		"new_status":      order.Status,
	}).Info("Order updated")

	s.cacheOrder(ctx, order)

	if s.eventsEnabled() {
		if err := s.eventPublisher.PublishOrderUpdated(ctx, order, previousStatus); err != nil {
			s.logger.WithFields(logrus.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			}).Error("Failed to publish order updated event")
		}
	}

	return order, nil
}

func applyOrderUpdate(order *models.Order, req *models.UpdateOrderRequest) error {
	if req.CustomerID != nil {
		order.CustomerID = *req.CustomerID
	}

	if req.Status != nil {
		if !order.Status.CanTransitionTo(*req.Status) {
			return apperrors.NewValidationError("status", fmt.Sprintf(
				"invalid status transition from %s to %s",
				order.Status,
				*req.Status,
			))
		}
		order.Status = *req.Status
	}

	if req.PaymentStatus != nil {
		order.PaymentStatus = *req.PaymentStatus
	}

	if req.Tax != nil || req.Shipping != nil {
		if req.Tax != nil {
			order.Tax = *req.Tax
		}
		if req.Shipping != nil {
			order.Shipping = *req.Shipping
		}
		order.ResetTotal()
	}

	return nil
}

// DeleteOrder removes an order and its items.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	s.logger.WithField("order_id", id).Info("Deleting order")

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)

	if s.eventsEnabled() {
		if err := s.eventPublisher.PublishOrderDeleted(ctx, id); err != nil {
			s.logger.WithFields(logrus.Fields{
				"order_id": id,
				"error":    err.Error(),
			}).Error("Failed to publish order deleted event")
		}
	}

	return nil
}

func (s *OrderService) cachingEnabled() bool {
	return s.config.Features.EnableOrderCaching && s.orderCache != nil
}

func (s *OrderService) eventsEnabled() bool {
	return s.config.Features.EnableOrderEvents && s.eventPublisher != nil
}

func (s *OrderService) cacheOrder(ctx context.Context, order *models.Order) {
	if !s.cachingEnabled() {
		return
	}
	if err := s.orderCache.Set(ctx, order); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		}).Warn("Failed to cache order")
	}
}

// fillCache stores an order read from the database without replacing a
// copy written by a newer update.
func (s *OrderService) fillCache(ctx context.Context, order *models.Order) {
	if !s.cachingEnabled() {
		return
	}
	if err := s.orderCache.Add(ctx, order); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		}).Warn("Failed to cache order")
	}
}

func (s *OrderService) invalidate(ctx context.Context, id int64) {
	if !s.cachingEnabled() {
		return
	}
	if err := s.orderCache.Delete(ctx, id); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": id,
			"error":    err.Error(),
		}).Warn("Failed to invalidate cached order")
	}
}
