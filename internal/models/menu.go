package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MenuItem is a live menu entry owned by the restaurant service.
type MenuItem struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Available bool            `json:"available"`
}

// Menu is a restaurant's current menu.
type Menu struct {
	RestaurantID   int64      `json:"restaurant_id"`
	RestaurantName string     `json:"restaurant_name"`
	Items          []MenuItem `json:"items"`
}

// StockLine is one menu item and quantity in a stock check or decrement.
type StockLine struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

// StockRequest is the body of stock check and decrement calls.
type StockRequest struct {
	Items []StockLine `json:"items"`
}

// Validate validates a stock request.
func (req *StockRequest) Validate() error {
	if len(req.Items) == 0 {
		return fmt.Errorf("items array cannot be empty")
	}
	for i, line := range req.Items {
		if line.MenuItemID <= 0 {
			return fmt.Errorf("items[%d].menu_item_id is required", i)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("items[%d].quantity must be at least 1", i)
		}
	}
	return nil
}
