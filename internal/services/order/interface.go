package order

import (
	"context"
	"time"

	"food-delivery/internal/models"
)

// Repository is the order store. Every conditional transition is enforced
// here with a guarded UPDATE, not only in orchestration logic, so concurrent
// callers cannot lose updates.
type Repository interface {
	// InsertOrder persists the order row and all item rows as one
	// transaction and fills in the generated IDs and timestamps.
	InsertOrder(ctx context.Context, order *models.Order) error

	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	SetPaymentID(ctx context.Context, orderID, paymentID int64) error

	// MarkPaid and MarkPaymentFailed move the order out of PENDING_PAYMENT.
	// The returned bool is false when the order was no longer in
	// PENDING_PAYMENT and nothing was changed.
	MarkPaid(ctx context.Context, orderID int64) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error)

	// AssignDriver moves PAID -> PREPARING with the driver and ETA set;
	// MarkPreparing moves PAID -> PREPARING with no driver.
	AssignDriver(ctx context.Context, orderID, driverID int64, eta time.Time) (bool, error)
	MarkPreparing(ctx context.Context, orderID int64) (bool, error)

	// AcceptOrder is the first-writer-wins driver claim: it succeeds only if
	// the order is PREPARING with no driver. It fails Conflict when another
	// driver already holds the order and InvalidState otherwise.
	AcceptOrder(ctx context.Context, orderID, driverID int64, eta time.Time) error

	// DispatchOrder is the auto-dispatch fire: PREPARING -> ON_THE_WAY only
	// if the given driver still holds the order. False means no-op.
	DispatchOrder(ctx context.Context, orderID, driverID int64) (bool, error)

	// CompleteOrder moves ON_THE_WAY -> DELIVERED for the assigned driver
	// only. It fails Forbidden on a driver mismatch and InvalidState
	// otherwise.
	CompleteOrder(ctx context.Context, orderID, driverID int64) error

	ListAvailableOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusLogEntry, error)

	RecordSagaStep(ctx context.Context, orderID int64, step, detail string) error
	GetSagaSteps(ctx context.Context, orderID int64) ([]models.SagaStepRecord, error)
	ListStalledPendingOrders(ctx context.Context, olderThan time.Time) ([]int64, error)
}

// StatusPublisher is the out-of-band notification sink. Implementations must
// never be load-bearing for the order lifecycle.
type StatusPublisher interface {
	PublishStatusUpdate(ctx context.Context, notification models.StatusNotification) error
}
