package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the state of a payment record
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is a payment record owned by the payment service. Orders hold only
// the payment ID.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreatePaymentRequest asks the payment service for a pending payment record.
type CreatePaymentRequest struct {
	OrderID int64           `json:"order_id"`
	UserID  int64           `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// Validate validates the create payment request
func (req *CreatePaymentRequest) Validate() error {
	if req.OrderID <= 0 {
		return fmt.Errorf("order_id is required")
	}
	if req.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// CreatePaymentResponse carries the new payment record's identity.
type CreatePaymentResponse struct {
	PaymentID int64  `json:"payment_id"`
	Reference string `json:"reference"`
}

// ConfirmPaymentRequest is the customer's out-of-band payment confirmation.
type ConfirmPaymentRequest struct {
	Outcome string `json:"outcome"` // "success" or "failure"
}
