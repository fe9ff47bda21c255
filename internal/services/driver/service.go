package driver

import (
	"context"

	"github.com/shopspring/decimal"

	"food-delivery/internal/apperr"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// Repository is the driver service's store. ClaimAvailableDriver must claim
// at most one driver atomically under concurrent assignment requests.
type Repository interface {
	ClaimAvailableDriver(ctx context.Context) (*models.DriverAssignment, error)
	ReleaseDriver(ctx context.Context, driverID int64, earnings decimal.Decimal) error
	GetDriver(ctx context.Context, driverID int64) (*models.Driver, error)
	GetDriverByUser(ctx context.Context, userID int64) (*models.Driver, error)
}

// Service assigns available drivers to orders and releases them after
// delivery.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates the driver service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// AssignDriver claims one available driver for the order.
func (s *Service) AssignDriver(ctx context.Context, req *models.AssignDriverRequest, requestID string) (*models.DriverAssignment, error) {
	if req.OrderID <= 0 {
		return nil, apperr.Validation("order_id is required")
	}

	assignment, err := s.repo.ClaimAvailableDriver(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("driver_claimed", "Driver assigned to order", requestID, map[string]interface{}{
		"order_id":  req.OrderID,
		"driver_id": assignment.DriverID,
	})
	return assignment, nil
}

// ReleaseDriver frees a busy driver and credits the delivery earnings.
func (s *Service) ReleaseDriver(ctx context.Context, driverID int64, req *models.ReleaseDriverRequest, requestID string) error {
	if req.Earnings.IsNegative() {
		return apperr.Validation("earnings cannot be negative")
	}

	if err := s.repo.ReleaseDriver(ctx, driverID, req.Earnings); err != nil {
		return err
	}

	s.logger.Info("driver_released", "Driver released after delivery", requestID, map[string]interface{}{
		"driver_id": driverID,
		"order_id":  req.OrderID,
		"earnings":  req.Earnings.String(),
	})
	return nil
}

// GetDriver returns a driver by ID.
func (s *Service) GetDriver(ctx context.Context, driverID int64) (*models.Driver, error) {
	return s.repo.GetDriver(ctx, driverID)
}

// GetDriverByUser returns the driver record backed by the given user.
func (s *Service) GetDriverByUser(ctx context.Context, userID int64) (*models.Driver, error) {
	return s.repo.GetDriverByUser(ctx, userID)
}
