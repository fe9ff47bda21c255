package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"food-delivery/internal/apperr"
	"food-delivery/internal/clients"
	"food-delivery/internal/config"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// deliveryFee is the flat amount credited to a driver per completed delivery.
var deliveryFee = decimal.NewFromInt(10000)

// Service is the order orchestrator: it owns the order state machine and
// coordinates the user, restaurant, payment and driver collaborators. All
// collaborator calls are synchronous with short timeouts and no retries; a
// failed step aborts the current request and partial completion is surfaced,
// not hidden.
type Service struct {
	repo        Repository
	users       clients.UserClient
	restaurants clients.RestaurantClient
	payments    clients.PaymentClient
	drivers     clients.DriverClient
	publisher   StatusPublisher
	logger      *logger.Logger

	deliveryETA time.Duration
	prepDelay   time.Duration

	// schedule defaults to time.AfterFunc; tests inject a synchronous stand-in.
	schedule func(d time.Duration, f func())
}

// NewService creates the orchestrator with its collaborators injected.
// publisher may be nil, in which case notifications are skipped.
func NewService(repo Repository, users clients.UserClient, restaurants clients.RestaurantClient,
	payments clients.PaymentClient, drivers clients.DriverClient, publisher StatusPublisher,
	log *logger.Logger, cfg config.OrchestrationConfig) *Service {

	return &Service{
		repo:        repo,
		users:       users,
		restaurants: restaurants,
		payments:    payments,
		drivers:     drivers,
		publisher:   publisher,
		logger:      log,
		deliveryETA: time.Duration(cfg.DeliveryETAMinutes) * time.Minute,
		prepDelay:   time.Duration(cfg.AutoDispatchSeconds) * time.Second,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// CreateOrder runs the order-creation saga: validate the user, price the
// items from the current menu, persist the order atomically, request a
// payment record, persist the payment ID, then decrement stock. Steps run in
// that order; any failure aborts the request. Already-completed steps are not
// rolled back, they are recorded in the saga-step table so the reconciler and
// operators can see how far a creation got.
func (s *Service) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, requestID string) (*models.CreateOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	if _, err := s.users.GetUser(ctx, req.UserID); err != nil {
		return nil, wrapCreateError(err)
	}

	menu, err := s.restaurants.GetMenu(ctx, req.RestaurantID)
	if err != nil {
		return nil, wrapCreateError(err)
	}

	items, total, err := priceItems(menu, req.Items)
	if err != nil {
		return nil, wrapCreateError(err)
	}

	lines := make([]models.StockLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = models.StockLine{MenuItemID: item.MenuItemID, Quantity: item.Quantity}
	}
	if err := s.restaurants.CheckStock(ctx, req.RestaurantID, lines); err != nil {
		return nil, wrapCreateError(err)
	}

	order := &models.Order{
		UserID:       req.UserID,
		RestaurantID: req.RestaurantID,
		AddressID:    req.AddressID,
		Status:       models.StatusPendingPayment,
		TotalPrice:   total,
		Items:        items,
	}
	if err := s.repo.InsertOrder(ctx, order); err != nil {
		return nil, wrapCreateError(err)
	}
	if err := s.recordStep(ctx, order.ID, models.SagaStepOrderPersisted, "", requestID); err != nil {
		return nil, wrapCreateError(err)
	}

	s.logger.Info("order_persisted", "Order persisted, requesting payment record", requestID, map[string]interface{}{
		"order_id":    order.ID,
		"total_price": total.String(),
	})

	payment, err := s.payments.CreatePayment(ctx, models.CreatePaymentRequest{
		OrderID: order.ID,
		UserID:  req.UserID,
		Amount:  total,
	})
	if err != nil {
		// The order stays PENDING_PAYMENT with no payment_id; the reconciler
		// can retry this step later.
		s.logger.Error("payment_request_failed", "Payment record creation failed", requestID, err, map[string]interface{}{
			"order_id": order.ID,
		})
		return nil, wrapCreateError(err)
	}
	if err := s.recordStep(ctx, order.ID, models.SagaStepPaymentRequested, fmt.Sprintf("payment_id=%d", payment.PaymentID), requestID); err != nil {
		return nil, wrapCreateError(err)
	}

	if err := s.repo.SetPaymentID(ctx, order.ID, payment.PaymentID); err != nil {
		return nil, wrapCreateError(err)
	}
	if err := s.recordStep(ctx, order.ID, models.SagaStepPaymentIDPersisted, "", requestID); err != nil {
		return nil, wrapCreateError(err)
	}

	// Stock is committed to this order before the customer has actually
	// paid; a later payment failure does not restock.
	if err := s.restaurants.DecreaseStock(ctx, req.RestaurantID, lines); err != nil {
		s.logger.Error("stock_decrement_failed", "Stock decrement failed after payment record creation", requestID, err, map[string]interface{}{
			"order_id": order.ID,
		})
		return nil, wrapCreateError(err)
	}
	if err := s.recordStep(ctx, order.ID, models.SagaStepStockDecremented, "", requestID); err != nil {
		return nil, wrapCreateError(err)
	}

	s.logger.Info("order_created", "Order creation saga completed", requestID, map[string]interface{}{
		"order_id":   order.ID,
		"payment_id": payment.PaymentID,
	})

	return &models.CreateOrderResponse{
		OrderID:    order.ID,
		Status:     order.Status,
		TotalPrice: total,
		PaymentID:  &payment.PaymentID,
	}, nil
}

// priceItems prices each requested line from the current menu and verifies
// availability and stock, distinguishing not-found, unavailable and
// insufficient-stock failures by name.
func priceItems(menu *models.Menu, requested []models.CreateOrderItem) ([]models.OrderItem, decimal.Decimal, error) {
	byID := make(map[int64]models.MenuItem, len(menu.Items))
	for _, item := range menu.Items {
		byID[item.ID] = item
	}

	items := make([]models.OrderItem, 0, len(requested))
	total := decimal.Zero
	for _, line := range requested {
		menuItem, ok := byID[line.MenuItemID]
		if !ok {
			return nil, decimal.Zero, apperr.Validation("menu item %d not found", line.MenuItemID)
		}
		if !menuItem.Available {
			return nil, decimal.Zero, apperr.Validation("menu item %q is unavailable", menuItem.Name)
		}
		if menuItem.Stock < line.Quantity {
			return nil, decimal.Zero, apperr.Validation("insufficient stock for %q: have %d, want %d",
				menuItem.Name, menuItem.Stock, line.Quantity)
		}

		items = append(items, models.OrderItem{
			MenuItemID:   menuItem.ID,
			MenuItemName: menuItem.Name,
			Quantity:     line.Quantity,
			Price:        menuItem.Price,
		})
		total = total.Add(menuItem.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return items, total, nil
}

// wrapCreateError surfaces the originating collaborator's message inside the
// creation wrapper, preserving its kind.
func wrapCreateError(err error) error {
	if kind := apperr.KindOf(err); kind != apperr.KindInternal {
		return apperr.Newf(kind, "failed to create order: %s", err.Error())
	}
	return fmt.Errorf("failed to create order: %w", err)
}

// HandlePaymentCallback reacts to the payment collaborator's outcome
// notification. A callback for an order that already left PENDING_PAYMENT is
// a logged no-op, so repeated callbacks cannot re-trigger driver assignment
// or double-schedule the auto-dispatch timer.
func (s *Service) HandlePaymentCallback(ctx context.Context, req *models.PaymentCallbackRequest, requestID string) error {
	order, err := s.repo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return err
	}

	if order.Status != models.StatusPendingPayment {
		s.logger.Info("payment_callback_ignored", "Order already left PENDING_PAYMENT", requestID, map[string]interface{}{
			"order_id": order.ID,
			"status":   order.Status,
		})
		return nil
	}

	if req.PaymentStatus != string(models.PaymentSuccess) {
		applied, err := s.repo.MarkPaymentFailed(ctx, order.ID)
		if err != nil {
			return err
		}
		if applied {
			s.notify(ctx, order.ID, models.StatusPendingPayment, models.StatusPaymentFailed)
			s.logger.Info("payment_failed", "Order marked PAYMENT_FAILED", requestID, map[string]interface{}{
				"order_id":       order.ID,
				"payment_status": req.PaymentStatus,
			})
		}
		return nil
	}

	applied, err := s.repo.MarkPaid(ctx, order.ID)
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race with a concurrent callback; that callback owns the
		// rest of the flow.
		return nil
	}
	s.notify(ctx, order.ID, models.StatusPendingPayment, models.StatusPaid)

	assignment, err := s.drivers.AssignDriver(ctx, order.ID)
	if err != nil {
		// No driver right now: the order stays pickable in the available
		// pool for drivers to self-assign.
		s.logger.Info("driver_assignment_failed", "No driver assigned, order stays pickable", requestID, map[string]interface{}{
			"order_id": order.ID,
			"reason":   err.Error(),
		})
		if _, err := s.repo.MarkPreparing(ctx, order.ID); err != nil {
			return err
		}
		s.notify(ctx, order.ID, models.StatusPaid, models.StatusPreparing)
		return nil
	}

	eta := time.Now().Add(s.deliveryETA)
	if _, err := s.repo.AssignDriver(ctx, order.ID, assignment.DriverID, eta); err != nil {
		return err
	}
	s.notify(ctx, order.ID, models.StatusPaid, models.StatusPreparing)

	s.logger.Info("driver_assigned", "Driver assigned, auto-dispatch scheduled", requestID, map[string]interface{}{
		"order_id":  order.ID,
		"driver_id": assignment.DriverID,
		"eta":       eta,
	})

	s.scheduleAutoDispatch(order.ID, assignment.DriverID, requestID)
	return nil
}

// scheduleAutoDispatch arms the simulated preparation timer. The fire is a
// conditional write guarded on the order still being PREPARING under the same
// driver, so it no-ops if the order already moved.
func (s *Service) scheduleAutoDispatch(orderID, driverID int64, requestID string) {
	s.schedule(s.prepDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		applied, err := s.repo.DispatchOrder(ctx, orderID, driverID)
		if err != nil {
			s.logger.Error("auto_dispatch_failed", "Auto-dispatch update failed", requestID, err, map[string]interface{}{
				"order_id": orderID,
			})
			return
		}
		if !applied {
			s.logger.Debug("auto_dispatch_skipped", "Order already left PREPARING", requestID, map[string]interface{}{
				"order_id": orderID,
			})
			return
		}

		s.notify(ctx, orderID, models.StatusPreparing, models.StatusOnTheWay)
		s.logger.Info("auto_dispatched", "Order moved to ON_THE_WAY by preparation timer", requestID, map[string]interface{}{
			"order_id":  orderID,
			"driver_id": driverID,
		})
	})
}

// AcceptOrder is a driver claiming a PREPARING order with no driver.
func (s *Service) AcceptOrder(ctx context.Context, orderID, driverID int64, requestID string) (*models.Order, error) {
	eta := time.Now().Add(s.deliveryETA)
	if err := s.repo.AcceptOrder(ctx, orderID, driverID, eta); err != nil {
		return nil, err
	}
	s.notify(ctx, orderID, models.StatusPreparing, models.StatusOnTheWay)

	s.logger.Info("order_accepted", "Driver accepted order", requestID, map[string]interface{}{
		"order_id":  orderID,
		"driver_id": driverID,
	})
	return s.repo.GetOrder(ctx, orderID)
}

// CompleteOrder is the assigned driver marking delivery done. The driver
// release and earnings credit is best-effort: its failure is logged and does
// not undo the delivery.
func (s *Service) CompleteOrder(ctx context.Context, orderID, driverID int64, requestID string) (*models.Order, error) {
	if err := s.repo.CompleteOrder(ctx, orderID, driverID); err != nil {
		return nil, err
	}
	s.notify(ctx, orderID, models.StatusOnTheWay, models.StatusDelivered)

	if err := s.drivers.ReleaseDriver(ctx, driverID, models.ReleaseDriverRequest{
		OrderID:  orderID,
		Earnings: deliveryFee,
	}); err != nil {
		s.logger.Error("driver_release_failed", "Failed to release driver after delivery", requestID, err, map[string]interface{}{
			"order_id":  orderID,
			"driver_id": driverID,
		})
	}

	s.logger.Info("order_delivered", "Order delivered", requestID, map[string]interface{}{
		"order_id":  orderID,
		"driver_id": driverID,
	})
	return s.repo.GetOrder(ctx, orderID)
}

// OrderDetail is an order plus its resolved delivery address.
type OrderDetail struct {
	models.Order
	DeliveryAddress *models.Address `json:"delivery_address,omitempty"`
}

// GetOrderDetail returns the order with its items and, when the user service
// is reachable, the resolved delivery address. Address resolution failures
// degrade the response instead of failing it.
func (s *Service) GetOrderDetail(ctx context.Context, orderID int64, requestID string) (*OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	detail := &OrderDetail{Order: *order}
	addresses, err := s.users.GetAddresses(ctx, order.UserID)
	if err != nil {
		s.logger.Error("address_resolution_failed", "Could not resolve delivery address", requestID, err, map[string]interface{}{
			"order_id": orderID,
			"user_id":  order.UserID,
		})
		return detail, nil
	}
	for i := range addresses {
		if addresses[i].ID == order.AddressID {
			detail.DeliveryAddress = &addresses[i]
			break
		}
	}
	return detail, nil
}

// ListAvailableOrders returns PREPARING orders with no driver assigned.
func (s *Service) ListAvailableOrders(ctx context.Context) ([]models.Order, error) {
	return s.repo.ListAvailableOrders(ctx)
}

// ListOrdersByUser returns a user's orders, newest first.
func (s *Service) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// GetStatusHistory returns the order's transition audit trail.
func (s *Service) GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusLogEntry, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetStatusHistory(ctx, orderID)
}

// GetSagaSteps returns the creation-saga step record for operator inspection.
func (s *Service) GetSagaSteps(ctx context.Context, orderID int64) ([]models.SagaStepRecord, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetSagaSteps(ctx, orderID)
}

// recordStep writes a saga-step row. The ledger is what the reconciler
// trusts when deciding which steps to retry, so a completed step must never
// go unrecorded: a failed write is retried once and then fails the step.
func (s *Service) recordStep(ctx context.Context, orderID int64, step, detail, requestID string) error {
	err := s.repo.RecordSagaStep(ctx, orderID, step, detail)
	if err != nil {
		s.logger.Error("saga_step_record_failed", "Retrying saga step record", requestID, err, map[string]interface{}{
			"order_id": orderID,
			"step":     step,
		})
		err = s.repo.RecordSagaStep(ctx, orderID, step, detail)
	}
	if err != nil {
		return fmt.Errorf("failed to record saga step %s: %w", step, err)
	}
	return nil
}

// notify publishes a status-change event; failures are swallowed after
// logging because notifications are out-of-band.
func (s *Service) notify(ctx context.Context, orderID int64, from, to models.OrderStatus) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishStatusUpdate(ctx, models.StatusNotification{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("notification_failed", "Status notification not published", "", err, map[string]interface{}{
			"order_id": orderID,
			"to":       to,
		})
	}
}
