// Package user is the thin read-only user/address collaborator. User and
// address management is owned elsewhere; this service only serves the
// lookups the orchestrator depends on.
package user

import (
	"context"

	"food-delivery/internal/models"
)

// Repository is the user service's read-only store.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.UserSummary, error)
	GetAddresses(ctx context.Context, userID int64) ([]models.Address, error)
}

// Service serves user summaries and delivery addresses.
type Service struct {
	repo Repository
}

// NewService creates the user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetUser returns a user summary.
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.UserSummary, error) {
	return s.repo.GetUser(ctx, userID)
}

// GetAddresses returns a user's delivery addresses.
func (s *Service) GetAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetAddresses(ctx, userID)
}
