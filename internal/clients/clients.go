// Package clients defines the collaborator contracts the order orchestrator
// depends on, and their HTTP implementations. The orchestrator only sees the
// interfaces; concrete clients are constructed in main and injected.
package clients

import (
	"context"

	"food-delivery/internal/models"
)

// UserClient resolves users and their delivery addresses.
type UserClient interface {
	GetUser(ctx context.Context, userID int64) (*models.UserSummary, error)
	GetAddresses(ctx context.Context, userID int64) ([]models.Address, error)
}

// RestaurantClient exposes the live menu and stock operations.
type RestaurantClient interface {
	GetMenu(ctx context.Context, restaurantID int64) (*models.Menu, error)
	CheckStock(ctx context.Context, restaurantID int64, items []models.StockLine) error
	DecreaseStock(ctx context.Context, restaurantID int64, items []models.StockLine) error
}

// PaymentClient creates pending payment records.
type PaymentClient interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error)
}

// DriverClient assigns and releases drivers.
type DriverClient interface {
	AssignDriver(ctx context.Context, orderID int64) (*models.DriverAssignment, error)
	ReleaseDriver(ctx context.Context, driverID int64, req models.ReleaseDriverRequest) error
}

// OrderClient is the payment service's view of the orchestrator: the
// out-of-band payment outcome callback.
type OrderClient interface {
	PaymentCallback(ctx context.Context, orderID int64, paymentStatus string) error
}

type bearerKey struct{}

// WithBearer stores the caller's bearer credential on the context so outgoing
// collaborator calls can forward it.
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFrom returns the bearer credential stored on the context, if any.
func BearerFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}
