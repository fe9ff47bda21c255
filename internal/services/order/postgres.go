package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"food-delivery/internal/apperr"
	"food-delivery/internal/database"
	"food-delivery/internal/models"
)

// PostgresRepository persists orders in the order service's own tables.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates the order repository.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertOrder persists the order row, all item rows and the initial status
// log entry in one transaction: either all rows exist or none do.
func (r *PostgresRepository) InsertOrder(ctx context.Context, order *models.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, database.InsertOrderSQL,
		order.UserID, order.RestaurantID, order.AddressID, order.Status, order.TotalPrice).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = tx.QueryRow(ctx, database.InsertOrderItemSQL,
			order.ID, item.MenuItemID, item.MenuItemName, item.Quantity, item.Price).
			Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, database.InsertOrderStatusLogSQL, order.ID, nil, order.Status, "order-service")
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	return tx.Commit(ctx)
}

// GetOrder loads an order with its items.
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.QueryRow(ctx, database.GetOrderSQL, orderID).Scan(
		&order.ID, &order.UserID, &order.RestaurantID, &order.AddressID,
		&order.Status, &order.TotalPrice, &order.PaymentID, &order.DriverID,
		&order.EstimatedDeliveryTime, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %d not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	rows, err := r.db.Query(ctx, database.GetOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID,
			&item.MenuItemName, &item.Quantity, &item.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &order, nil
}

// SetPaymentID writes the payment collaborator's record ID onto the order.
func (r *PostgresRepository) SetPaymentID(ctx context.Context, orderID, paymentID int64) error {
	tag, err := r.db.Pool.Exec(ctx, database.SetOrderPaymentIDSQL, orderID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to set payment id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order %d not found", orderID)
	}
	return nil
}

// transition runs a guarded status UPDATE and, when it applied, appends the
// status log row in the same transaction.
func (r *PostgresRepository) transition(ctx context.Context, orderID int64, sql string, args []interface{},
	from, to models.OrderStatus, changedBy string) (bool, error) {

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, database.InsertOrderStatusLogSQL, orderID, from, to, changedBy)
	if err != nil {
		return false, fmt.Errorf("failed to insert status log: %w", err)
	}

	return true, tx.Commit(ctx)
}

// MarkPaid moves PENDING_PAYMENT -> PAID.
func (r *PostgresRepository) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	args := []interface{}{orderID, models.StatusPendingPayment, models.StatusPaid}
	return r.transition(ctx, orderID, database.UpdateOrderStatusSQL, args,
		models.StatusPendingPayment, models.StatusPaid, "payment-callback")
}

// MarkPaymentFailed moves PENDING_PAYMENT -> PAYMENT_FAILED.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	args := []interface{}{orderID, models.StatusPendingPayment, models.StatusPaymentFailed}
	return r.transition(ctx, orderID, database.UpdateOrderStatusSQL, args,
		models.StatusPendingPayment, models.StatusPaymentFailed, "payment-callback")
}

// AssignDriver moves PAID -> PREPARING with the driver and ETA set.
func (r *PostgresRepository) AssignDriver(ctx context.Context, orderID, driverID int64, eta time.Time) (bool, error) {
	args := []interface{}{orderID, driverID, eta}
	return r.transition(ctx, orderID, database.AssignOrderDriverSQL, args,
		models.StatusPaid, models.StatusPreparing, "orchestrator")
}

// MarkPreparing moves PAID -> PREPARING with no driver assigned.
func (r *PostgresRepository) MarkPreparing(ctx context.Context, orderID int64) (bool, error) {
	args := []interface{}{orderID, models.StatusPaid, models.StatusPreparing}
	return r.transition(ctx, orderID, database.UpdateOrderStatusSQL, args,
		models.StatusPaid, models.StatusPreparing, "orchestrator")
}

// AcceptOrder claims a PREPARING order for a driver. The WHERE clause checks
// driver_id IS NULL so exactly one of two concurrent acceptors wins; the
// loser is told why it lost.
func (r *PostgresRepository) AcceptOrder(ctx context.Context, orderID, driverID int64, eta time.Time) error {
	changedBy := fmt.Sprintf("driver-%d", driverID)
	applied, err := r.transition(ctx, orderID, database.AcceptOrderSQL,
		[]interface{}{orderID, driverID, eta},
		models.StatusPreparing, models.StatusOnTheWay, changedBy)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusPreparing {
		return apperr.InvalidState("order %d is %s, not PREPARING", orderID, order.Status)
	}
	return apperr.Conflict("order %d was already accepted by another driver", orderID)
}

// DispatchOrder is the auto-dispatch conditional write; false means the
// order already moved and the timer fire is a no-op.
func (r *PostgresRepository) DispatchOrder(ctx context.Context, orderID, driverID int64) (bool, error) {
	return r.transition(ctx, orderID, database.DispatchOrderSQL,
		[]interface{}{orderID, driverID},
		models.StatusPreparing, models.StatusOnTheWay, "auto-dispatch")
}

// CompleteOrder moves ON_THE_WAY -> DELIVERED for the assigned driver only.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, orderID, driverID int64) error {
	changedBy := fmt.Sprintf("driver-%d", driverID)
	applied, err := r.transition(ctx, orderID, database.CompleteOrderSQL,
		[]interface{}{orderID, driverID},
		models.StatusOnTheWay, models.StatusDelivered, changedBy)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	order, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.StatusOnTheWay {
		return apperr.InvalidState("order %d is %s, not ON_THE_WAY", orderID, order.Status)
	}
	return apperr.Forbidden("order %d is assigned to a different driver", orderID)
}

func (r *PostgresRepository) listOrders(ctx context.Context, sql string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(&order.ID, &order.UserID, &order.RestaurantID, &order.AddressID,
			&order.Status, &order.TotalPrice, &order.PaymentID, &order.DriverID,
			&order.EstimatedDeliveryTime, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ListAvailableOrders returns PREPARING orders with no driver.
func (r *PostgresRepository) ListAvailableOrders(ctx context.Context) ([]models.Order, error) {
	return r.listOrders(ctx, database.ListAvailableOrdersSQL)
}

// ListOrdersByUser returns a user's orders, newest first.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return r.listOrders(ctx, database.ListOrdersByUserSQL, userID)
}

// GetStatusHistory returns the transition audit trail for an order.
func (r *PostgresRepository) GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusLogEntry, error) {
	rows, err := r.db.Query(ctx, database.GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var history []models.OrderStatusLogEntry
	for rows.Next() {
		var entry models.OrderStatusLogEntry
		if err := rows.Scan(&entry.FromStatus, &entry.ToStatus, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// RecordSagaStep marks a creation-saga step completed. Re-recording the same
// step is a no-op.
func (r *PostgresRepository) RecordSagaStep(ctx context.Context, orderID int64, step, detail string) error {
	return r.db.Exec(ctx, database.InsertSagaStepSQL, orderID, step, detail)
}

// GetSagaSteps returns the completed saga steps for an order.
func (r *PostgresRepository) GetSagaSteps(ctx context.Context, orderID int64) ([]models.SagaStepRecord, error) {
	rows, err := r.db.Query(ctx, database.GetSagaStepsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get saga steps: %w", err)
	}
	defer rows.Close()

	var steps []models.SagaStepRecord
	for rows.Next() {
		var step models.SagaStepRecord
		if err := rows.Scan(&step.OrderID, &step.Step, &step.Detail, &step.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saga step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListStalledPendingOrders returns PENDING_PAYMENT orders older than the
// cutoff whose creation saga did not record all steps.
func (r *PostgresRepository) ListStalledPendingOrders(ctx context.Context, olderThan time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, database.ListStalledPendingOrdersSQL, olderThan, sagaStepCount)
	if err != nil {
		return nil, fmt.Errorf("failed to list stalled orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// sagaStepCount is the number of steps a fully completed creation saga records.
const sagaStepCount = 4
