package restaurant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"food-delivery/internal/apperr"
	"food-delivery/internal/database"
	"food-delivery/internal/models"
)

// PostgresRepository persists the restaurant service's menu tables.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates the restaurant repository.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetMenu loads the restaurant and all its menu items.
func (r *PostgresRepository) GetMenu(ctx context.Context, restaurantID int64) (*models.Menu, error) {
	menu := models.Menu{RestaurantID: restaurantID}
	err := r.db.QueryRow(ctx, database.GetRestaurantSQL, restaurantID).
		Scan(&menu.RestaurantID, &menu.RestaurantName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("restaurant %d not found", restaurantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}

	rows, err := r.db.Query(ctx, database.GetMenuItemsSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get menu items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Stock, &item.Available); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		menu.Items = append(menu.Items, item)
	}
	return &menu, rows.Err()
}

// CheckStock verifies each line against the live menu, naming the offending
// item and distinguishing not-found, unavailable and insufficient-stock.
func (r *PostgresRepository) CheckStock(ctx context.Context, restaurantID int64, items []models.StockLine) error {
	for _, line := range items {
		var name string
		var stock int
		var available bool
		err := r.db.QueryRow(ctx, database.GetMenuItemForCheckSQL, line.MenuItemID, restaurantID).
			Scan(&name, &stock, &available)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Validation("menu item %d not found", line.MenuItemID)
		}
		if err != nil {
			return fmt.Errorf("failed to check stock: %w", err)
		}
		if !available {
			return apperr.Validation("menu item %q is unavailable", name)
		}
		if stock < line.Quantity {
			return apperr.Validation("insufficient stock for %q: have %d, want %d", name, stock, line.Quantity)
		}
	}
	return nil
}

// DecreaseStock decrements every line in one transaction. Each decrement is
// conditional on availability and remaining stock; any line that cannot
// decrement aborts the whole transaction.
func (r *PostgresRepository) DecreaseStock(ctx context.Context, restaurantID int64, items []models.StockLine) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, line := range items {
		tag, err := tx.Exec(ctx, database.DecreaseStockSQL, line.MenuItemID, restaurantID, line.Quantity)
		if err != nil {
			return fmt.Errorf("failed to decrease stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Re-check outside the guarded UPDATE to report why.
			if checkErr := r.CheckStock(ctx, restaurantID, []models.StockLine{line}); checkErr != nil {
				return checkErr
			}
			return apperr.Validation("could not decrement stock for menu item %d", line.MenuItemID)
		}
	}

	return tx.Commit(ctx)
}
