package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients send and receive money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransitionTo reports whether an order may move from s to next.
// Staying in the same status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a persisted sales order. Items and Subtotal are fixed at
// creation; Total always equals Subtotal + Tax + Shipping.
type Order struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at"`
}

// OrderItem is one resolved order line.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

// CalculateTotal recomputes Subtotal from the item totals and Total from
// Subtotal, Tax and Shipping.
func (o *Order) CalculateTotal() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Total)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.Tax).Add(o.Shipping)
}

// ResetTotal recomputes Total from the stored Subtotal, Tax and Shipping
// without touching the items.
func (o *Order) ResetTotal() {
	o.Total = o.Subtotal.Add(o.Tax).Add(o.Shipping)
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerID int64              `json:"customer_id"`
	Tax        *decimal.Decimal   `json:"tax"`
	Shipping   *decimal.Decimal   `json:"shipping"`
	Items      []OrderItemRequest `json:"items"`
}

// OrderItemRequest is a requested line. Price and Total are optional; the
// server fills them in.
type OrderItemRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Total     *decimal.Decimal `json:"total,omitempty"`
}

// UpdateOrderRequest replaces the mutable fields that are present.
type UpdateOrderRequest struct {
	CustomerID    *int64           `json:"customer_id"`
	Status        *OrderStatus     `json:"status"`
	PaymentStatus *PaymentStatus   `json:"payment_status"`
	Tax           *decimal.Decimal `json:"tax"`
	Shipping      *decimal.Decimal `json:"shipping"`
}

// OrderListFilter pages through orders. Skip/Limit follow the public API names.
type OrderListFilter struct {
	Skip  int
	Limit int
}
