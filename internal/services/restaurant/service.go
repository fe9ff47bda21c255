package restaurant

import (
	"context"

	"food-delivery/internal/apperr"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// Repository is the restaurant service's store. DecreaseStock must be a
// conditional write at the persistence layer: a decrement only applies when
// the item is available and has enough stock.
type Repository interface {
	GetMenu(ctx context.Context, restaurantID int64) (*models.Menu, error)
	CheckStock(ctx context.Context, restaurantID int64, items []models.StockLine) error
	DecreaseStock(ctx context.Context, restaurantID int64, items []models.StockLine) error
}

// Service exposes menu reads and stock operations.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates the restaurant service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// GetMenu returns the restaurant's live menu.
func (s *Service) GetMenu(ctx context.Context, restaurantID int64) (*models.Menu, error) {
	return s.repo.GetMenu(ctx, restaurantID)
}

// CheckStock verifies every requested line can currently be satisfied.
func (s *Service) CheckStock(ctx context.Context, restaurantID int64, req *models.StockRequest, requestID string) error {
	if err := req.Validate(); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return s.repo.CheckStock(ctx, restaurantID, req.Items)
}

// DecreaseStock commits stock to an order. All lines decrement in one
// transaction or none do.
func (s *Service) DecreaseStock(ctx context.Context, restaurantID int64, req *models.StockRequest, requestID string) error {
	if err := req.Validate(); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if err := s.repo.DecreaseStock(ctx, restaurantID, req.Items); err != nil {
		return err
	}

	s.logger.Info("stock_decreased", "Stock decremented", requestID, map[string]interface{}{
		"restaurant_id": restaurantID,
		"lines":         len(req.Items),
	})
	return nil
}
