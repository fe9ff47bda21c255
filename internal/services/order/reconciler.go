package order

import (
	"context"
	"fmt"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// staleAfter is how long a PENDING_PAYMENT order may sit with an incomplete
// saga before the reconciler picks it up.
const staleAfter = 5 * time.Minute

// Reconciler retries the missing steps of stalled order-creation sagas. Each
// retry is idempotent: completed steps are recorded in the saga-step table
// and never re-run. The reconciler adds no compensation; it only pushes a
// stalled creation forward, never back.
type Reconciler struct {
	service *Service
	logger  *logger.Logger
}

// NewReconciler creates a reconciler over the orchestrator's collaborators.
func NewReconciler(service *Service, log *logger.Logger) *Reconciler {
	return &Reconciler{service: service, logger: log}
}

// Run scans on the given interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scan(ctx)
		}
	}
}

func (r *Reconciler) scan(ctx context.Context) {
	requestID := logger.GenerateRequestID()

	cutoff := time.Now().Add(-staleAfter)
	ids, err := r.service.repo.ListStalledPendingOrders(ctx, cutoff)
	if err != nil {
		r.logger.Error("reconcile_scan_failed", "Failed to list stalled orders", requestID, err, nil)
		return
	}
	if len(ids) == 0 {
		return
	}

	r.logger.Info("reconcile_scan", "Found stalled order creations", requestID, map[string]interface{}{
		"count": len(ids),
	})

	for _, orderID := range ids {
		if err := r.reconcileOrder(ctx, orderID, requestID); err != nil {
			r.logger.Error("reconcile_failed", "Could not repair stalled order", requestID, err, map[string]interface{}{
				"order_id": orderID,
			})
		}
	}
}

// reconcileOrder retries whichever creation steps the saga record shows as
// missing, in the original step order.
func (r *Reconciler) reconcileOrder(ctx context.Context, orderID int64, requestID string) error {
	s := r.service

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusPendingPayment {
		return nil
	}

	steps, err := s.repo.GetSagaSteps(ctx, orderID)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(steps))
	for _, step := range steps {
		done[step.Step] = true
	}

	if !done[models.SagaStepOrderPersisted] {
		// The order row we just loaded is the step's own evidence.
		if err := s.recordStep(ctx, order.ID, models.SagaStepOrderPersisted, "backfilled", requestID); err != nil {
			return err
		}
	}

	if order.PaymentID == nil {
		// A payment record may already exist even though the order never got
		// its id: the payment_requested detail holds it. Only mint a new
		// payment when no recorded id can be recovered.
		paymentID, recovered := recordedPaymentID(steps)
		if !recovered {
			payment, err := s.payments.CreatePayment(ctx, models.CreatePaymentRequest{
				OrderID: order.ID,
				UserID:  order.UserID,
				Amount:  order.TotalPrice,
			})
			if err != nil {
				return fmt.Errorf("payment retry failed: %w", err)
			}
			paymentID = payment.PaymentID
			if err := s.recordStep(ctx, order.ID, models.SagaStepPaymentRequested, fmt.Sprintf("payment_id=%d (reconciled)", paymentID), requestID); err != nil {
				return err
			}
		}

		if err := s.repo.SetPaymentID(ctx, order.ID, paymentID); err != nil {
			return err
		}
		if err := s.recordStep(ctx, order.ID, models.SagaStepPaymentIDPersisted, "reconciled", requestID); err != nil {
			return err
		}
		order.PaymentID = &paymentID
	} else if !done[models.SagaStepPaymentIDPersisted] {
		if err := s.recordStep(ctx, order.ID, models.SagaStepPaymentIDPersisted, "backfilled", requestID); err != nil {
			return err
		}
	}

	if !done[models.SagaStepStockDecremented] {
		lines := make([]models.StockLine, len(order.Items))
		for i, item := range order.Items {
			lines[i] = models.StockLine{MenuItemID: item.MenuItemID, Quantity: item.Quantity}
		}
		if err := s.restaurants.DecreaseStock(ctx, order.RestaurantID, lines); err != nil {
			return fmt.Errorf("stock decrement retry failed: %w", err)
		}
		if err := s.recordStep(ctx, order.ID, models.SagaStepStockDecremented, "reconciled", requestID); err != nil {
			return err
		}
	}

	r.logger.Info("reconcile_repaired", "Stalled order creation pushed forward", requestID, map[string]interface{}{
		"order_id": orderID,
	})
	return nil
}

// recordedPaymentID recovers the payment record id from a completed
// payment_requested step's detail.
func recordedPaymentID(steps []models.SagaStepRecord) (int64, bool) {
	for _, step := range steps {
		if step.Step != models.SagaStepPaymentRequested {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(step.Detail, "payment_id=%d", &id); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}
