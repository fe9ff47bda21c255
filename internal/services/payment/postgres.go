package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"food-delivery/internal/apperr"
	"food-delivery/internal/database"
	"food-delivery/internal/models"
)

// PostgresRepository persists the payment service's payments table.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates the payment repository.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertPayment creates a PENDING payment row with a fresh transaction
// reference and fills in the generated fields.
func (r *PostgresRepository) InsertPayment(ctx context.Context, payment *models.Payment) error {
	payment.Reference = uuid.NewString()
	err := r.db.QueryRow(ctx, database.InsertPaymentSQL,
		payment.OrderID, payment.UserID, payment.Amount, payment.Reference).
		Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	payment.Status = models.PaymentPending
	return nil
}

// SettlePayment moves a PENDING payment to its final status. False means the
// payment was not PENDING anymore.
func (r *PostgresRepository) SettlePayment(ctx context.Context, paymentID int64, status models.PaymentStatus) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, database.SettlePaymentSQL, paymentID, status)
	if err != nil {
		return false, fmt.Errorf("failed to settle payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetPayment loads a payment by ID.
func (r *PostgresRepository) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.QueryRow(ctx, database.GetPaymentSQL, paymentID).Scan(
		&payment.ID, &payment.OrderID, &payment.UserID, &payment.Amount,
		&payment.Status, &payment.Reference, &payment.CreatedAt, &payment.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment %d not found", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}
