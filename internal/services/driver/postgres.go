package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"food-delivery/internal/apperr"
	"food-delivery/internal/database"
	"food-delivery/internal/models"
)

// PostgresRepository persists the driver service's drivers table.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates the driver repository.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ClaimAvailableDriver flips one available driver to busy. The subselect uses
// FOR UPDATE SKIP LOCKED so concurrent assignment requests claim distinct
// drivers instead of waiting on each other.
func (r *PostgresRepository) ClaimAvailableDriver(ctx context.Context) (*models.DriverAssignment, error) {
	var assignment models.DriverAssignment
	err := r.db.QueryRow(ctx, database.ClaimAvailableDriverSQL).
		Scan(&assignment.DriverID, &assignment.DriverName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no available driver")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim driver: %w", err)
	}
	return &assignment, nil
}

// ReleaseDriver marks a busy driver available again and credits earnings.
func (r *PostgresRepository) ReleaseDriver(ctx context.Context, driverID int64, earnings decimal.Decimal) error {
	tag, err := r.db.Pool.Exec(ctx, database.ReleaseDriverSQL, driverID, earnings)
	if err != nil {
		return fmt.Errorf("failed to release driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetDriver(ctx, driverID); err != nil {
			return err
		}
		return apperr.InvalidState("driver %d is not busy", driverID)
	}
	return nil
}

// GetDriver loads a driver by ID.
func (r *PostgresRepository) GetDriver(ctx context.Context, driverID int64) (*models.Driver, error) {
	return r.scanDriver(r.db.QueryRow(ctx, database.GetDriverSQL, driverID),
		apperr.NotFound("driver %d not found", driverID))
}

// GetDriverByUser loads the driver record owned by a user.
func (r *PostgresRepository) GetDriverByUser(ctx context.Context, userID int64) (*models.Driver, error) {
	return r.scanDriver(r.db.QueryRow(ctx, database.GetDriverByUserSQL, userID),
		apperr.NotFound("no driver for user %d", userID))
}

func (r *PostgresRepository) scanDriver(row pgx.Row, notFound error) (*models.Driver, error) {
	var driver models.Driver
	err := row.Scan(&driver.ID, &driver.UserID, &driver.Name, &driver.Status,
		&driver.TotalEarnings, &driver.OrdersDelivered, &driver.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return &driver, nil
}
