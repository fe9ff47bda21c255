package payment

import (
	"context"

	"food-delivery/internal/apperr"
	"food-delivery/internal/clients"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// Repository is the payment service's store. SettlePayment is conditional on
// the payment still being PENDING, so a payment settles exactly once.
type Repository interface {
	InsertPayment(ctx context.Context, payment *models.Payment) error
	SettlePayment(ctx context.Context, paymentID int64, status models.PaymentStatus) (bool, error)
	GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error)
}

// Service owns payment records and notifies the order orchestrator of
// settlement outcomes.
type Service struct {
	repo   Repository
	orders clients.OrderClient
	logger *logger.Logger
}

// NewService creates the payment service with the order callback client
// injected.
func NewService(repo Repository, orders clients.OrderClient, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		orders: orders,
		logger: log,
	}
}

// CreatePayment records a PENDING payment for an order and amount.
func (s *Service) CreatePayment(ctx context.Context, req *models.CreatePaymentRequest, requestID string) (*models.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	payment := &models.Payment{
		OrderID: req.OrderID,
		UserID:  req.UserID,
		Amount:  req.Amount,
		Status:  models.PaymentPending,
	}
	if err := s.repo.InsertPayment(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info("payment_created", "Pending payment record created", requestID, map[string]interface{}{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"amount":     payment.Amount.String(),
	})
	return payment, nil
}

// ConfirmPayment settles a pending payment with the customer's out-of-band
// outcome and then invokes the order orchestrator's payment callback. A
// callback failure is reported to the caller but the settled payment state
// stands; the callback must be re-invoked manually.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID int64, outcome, requestID string) (*models.Payment, error) {
	var status models.PaymentStatus
	switch outcome {
	case "success":
		status = models.PaymentSuccess
	case "failure":
		status = models.PaymentFailed
	default:
		return nil, apperr.Validation("outcome must be \"success\" or \"failure\"")
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	applied, err := s.repo.SettlePayment(ctx, paymentID, status)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.InvalidState("payment %d is already %s", paymentID, payment.Status)
	}
	payment.Status = status

	s.logger.Info("payment_settled", "Payment settled", requestID, map[string]interface{}{
		"payment_id": paymentID,
		"order_id":   payment.OrderID,
		"status":     status,
	})

	if err := s.orders.PaymentCallback(ctx, payment.OrderID, string(status)); err != nil {
		s.logger.Error("order_callback_failed", "Order service callback failed", requestID, err, map[string]interface{}{
			"payment_id": paymentID,
			"order_id":   payment.OrderID,
		})
		return nil, apperr.Upstream("payment settled but order notification failed", err)
	}

	return payment, nil
}

// GetPayment returns a payment record.
func (s *Service) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	return s.repo.GetPayment(ctx, paymentID)
}
