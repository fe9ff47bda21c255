package models

import "time"

// UserSummary is the read-only view of a user the orchestrator needs.
type UserSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Address is a delivery address owned by the user service.
type Address struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Label  string `json:"label"`
	Street string `json:"street"`
	City   string `json:"city"`
}
