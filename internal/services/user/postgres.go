package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"food-delivery/internal/apperr"
	"food-delivery/internal/database"
	"food-delivery/internal/models"
)

// PostgresRepository reads the user service's tables.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates the user repository.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetUser loads a user summary by ID.
func (r *PostgresRepository) GetUser(ctx context.Context, userID int64) (*models.UserSummary, error) {
	var user models.UserSummary
	err := r.db.QueryRow(ctx, database.GetUserSQL, userID).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetAddresses loads a user's addresses.
func (r *PostgresRepository) GetAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	rows, err := r.db.Query(ctx, database.GetAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		var address models.Address
		if err := rows.Scan(&address.ID, &address.UserID, &address.Label, &address.Street, &address.City); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}
