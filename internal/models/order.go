package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusPaid           OrderStatus = "PAID"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusOnTheWay       OrderStatus = "ON_THE_WAY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusPaymentFailed  OrderStatus = "PAYMENT_FAILED"
)

// validTransitions encodes the order state machine. PAYMENT_FAILED and
// DELIVERED are absorbing; nothing is bidirectional and there is no
// cancellation path.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment: {StatusPaid, StatusPaymentFailed},
	StatusPaid:           {StatusPreparing},
	StatusPreparing:      {StatusOnTheWay},
	StatusOnTheWay:       {StatusDelivered},
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusPreparing, StatusOnTheWay, StatusDelivered, StatusPaymentFailed:
		return true
	}
	return false
}

// Order represents a customer order. TotalPrice is computed once at creation
// from menu prices and never recomputed.
type Order struct {
	ID                    int64           `json:"id"`
	UserID                int64           `json:"user_id"`
	RestaurantID          int64           `json:"restaurant_id"`
	AddressID             int64           `json:"address_id"`
	Status                OrderStatus     `json:"status"`
	TotalPrice            decimal.Decimal `json:"total_price"`
	PaymentID             *int64          `json:"payment_id,omitempty"`
	DriverID              *int64          `json:"driver_id,omitempty"`
	EstimatedDeliveryTime *time.Time      `json:"estimated_delivery_time,omitempty"`
	Items                 []OrderItem     `json:"items,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// OrderItem is a denormalized snapshot of a menu item at order time, so
// historical orders stay stable when the live menu changes.
type OrderItem struct {
	ID           int64           `json:"id,omitempty"`
	OrderID      int64           `json:"order_id,omitempty"`
	MenuItemID   int64           `json:"menu_item_id"`
	MenuItemName string          `json:"menu_item_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// OrderStatusLogEntry is one row of the order's transition audit trail.
type OrderStatusLogEntry struct {
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	ChangedBy  string      `json:"changed_by"`
	ChangedAt  time.Time   `json:"changed_at"`
}

// Creation-saga step names, recorded in order of completion.
const (
	SagaStepOrderPersisted     = "order_persisted"
	SagaStepPaymentRequested   = "payment_requested"
	SagaStepPaymentIDPersisted = "payment_id_persisted"
	SagaStepStockDecremented   = "stock_decremented"
)

// SagaStepRecord marks one completed step of the order-creation saga.
type SagaStepRecord struct {
	OrderID     int64     `json:"order_id"`
	Step        string    `json:"step"`
	Detail      string    `json:"detail,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// CreateOrderRequest represents the request to create a new order
type CreateOrderRequest struct {
	UserID       int64             `json:"user_id"`
	RestaurantID int64             `json:"restaurant_id"`
	AddressID    int64             `json:"address_id"`
	Items        []CreateOrderItem `json:"items"`
}

// CreateOrderItem is one requested line item; pricing always comes from the
// current menu, never from the client.
type CreateOrderItem struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

// Validate validates the create order request
func (req *CreateOrderRequest) Validate() error {
	if req.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if req.RestaurantID <= 0 {
		return fmt.Errorf("restaurant_id is required")
	}
	if req.AddressID <= 0 {
		return fmt.Errorf("address_id is required")
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("items array cannot be empty")
	}
	if len(req.Items) > 20 {
		return fmt.Errorf("items array cannot contain more than 20 items")
	}
	for i, item := range req.Items {
		if item.MenuItemID <= 0 {
			return fmt.Errorf("items[%d].menu_item_id is required", i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("items[%d].quantity must be at least 1", i)
		}
	}
	return nil
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID    int64           `json:"order_id"`
	Status     OrderStatus     `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	PaymentID  *int64          `json:"payment_id,omitempty"`
}

// PaymentCallbackRequest is the payment collaborator's notification of a
// payment outcome.
type PaymentCallbackRequest struct {
	OrderID       int64  `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

// DriverActionRequest identifies the driver accepting or completing an order.
type DriverActionRequest struct {
	DriverID int64 `json:"driver_id"`
}

// StatusNotification is the out-of-band event published after a transition
// commits. It is never consumed to drive the order lifecycle.
type StatusNotification struct {
	OrderID    int64       `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	ChangedAt  time.Time   `json:"changed_at"`
}
