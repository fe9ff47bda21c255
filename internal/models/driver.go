package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DriverStatus represents a driver's availability
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

// Driver is owned by the driver service; orders reference only the driver ID.
type Driver struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Name            string          `json:"name"`
	Status          DriverStatus    `json:"status"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	OrdersDelivered int             `json:"orders_delivered"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AssignDriverRequest asks for one available driver to take an order.
type AssignDriverRequest struct {
	OrderID int64 `json:"order_id"`
}

// DriverAssignment is the result of a successful assignment.
type DriverAssignment struct {
	DriverID   int64  `json:"driver_id"`
	DriverName string `json:"driver_name"`
}

// ReleaseDriverRequest frees a driver after a delivery and credits earnings.
type ReleaseDriverRequest struct {
	OrderID  int64           `json:"order_id"`
	Earnings decimal.Decimal `json:"earnings"`
}
