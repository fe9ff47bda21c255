package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
)

// envelope mirrors the wire shape every service responds with.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// httpClient is the shared transport for all collaborator clients. Calls use
// a short fixed timeout and are never retried; a timed-out or failed call is
// the caller's local failure for that step.
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string, timeout time.Duration) httpClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// call performs one request and decodes the success envelope into out (which
// may be nil when the payload is irrelevant).
func (c httpClient) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := BearerFrom(ctx); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Upstream(fmt.Sprintf("%s unreachable", c.baseURL), err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperr.Upstream(fmt.Sprintf("%s returned a malformed response", c.baseURL), err)
	}

	if resp.StatusCode >= 400 || env.Status != "success" {
		return remoteError(resp.StatusCode, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.Upstream(fmt.Sprintf("%s returned an undecodable payload", c.baseURL), err)
		}
	}
	return nil
}

// remoteError maps an error envelope back into the local taxonomy so the
// collaborator's message survives the hop.
func remoteError(statusCode int, message string) error {
	if message == "" {
		message = "collaborator error"
	}
	switch statusCode {
	case http.StatusNotFound:
		return apperr.NotFound("%s", message)
	case http.StatusBadRequest:
		return apperr.Validation("%s", message)
	case http.StatusConflict:
		return apperr.Conflict("%s", message)
	case http.StatusForbidden:
		return apperr.Forbidden("%s", message)
	default:
		return apperr.Upstream(message, nil)
	}
}

// HTTPUserClient talks to the user service.
type HTTPUserClient struct{ httpClient }

// NewUserClient creates a user-service client.
func NewUserClient(baseURL string, timeout time.Duration) *HTTPUserClient {
	return &HTTPUserClient{newHTTPClient(baseURL, timeout)}
}

func (c *HTTPUserClient) GetUser(ctx context.Context, userID int64) (*models.UserSummary, error) {
	var user models.UserSummary
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPUserClient) GetAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	var addresses []models.Address
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d/addresses", userID), nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// HTTPRestaurantClient talks to the restaurant service.
type HTTPRestaurantClient struct{ httpClient }

// NewRestaurantClient creates a restaurant-service client.
func NewRestaurantClient(baseURL string, timeout time.Duration) *HTTPRestaurantClient {
	return &HTTPRestaurantClient{newHTTPClient(baseURL, timeout)}
}

func (c *HTTPRestaurantClient) GetMenu(ctx context.Context, restaurantID int64) (*models.Menu, error) {
	var menu models.Menu
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/restaurants/%d/menu", restaurantID), nil, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

func (c *HTTPRestaurantClient) CheckStock(ctx context.Context, restaurantID int64, items []models.StockLine) error {
	path := fmt.Sprintf("/restaurants/%d/stock/check", restaurantID)
	return c.call(ctx, http.MethodPost, path, models.StockRequest{Items: items}, nil)
}

func (c *HTTPRestaurantClient) DecreaseStock(ctx context.Context, restaurantID int64, items []models.StockLine) error {
	path := fmt.Sprintf("/restaurants/%d/stock/decrease", restaurantID)
	return c.call(ctx, http.MethodPost, path, models.StockRequest{Items: items}, nil)
}

// HTTPPaymentClient talks to the payment service.
type HTTPPaymentClient struct{ httpClient }

// NewPaymentClient creates a payment-service client.
func NewPaymentClient(baseURL string, timeout time.Duration) *HTTPPaymentClient {
	return &HTTPPaymentClient{newHTTPClient(baseURL, timeout)}
}

func (c *HTTPPaymentClient) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	var resp models.CreatePaymentResponse
	if err := c.call(ctx, http.MethodPost, "/payments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HTTPDriverClient talks to the driver service.
type HTTPDriverClient struct{ httpClient }

// NewDriverClient creates a driver-service client.
func NewDriverClient(baseURL string, timeout time.Duration) *HTTPDriverClient {
	return &HTTPDriverClient{newHTTPClient(baseURL, timeout)}
}

func (c *HTTPDriverClient) AssignDriver(ctx context.Context, orderID int64) (*models.DriverAssignment, error) {
	var assignment models.DriverAssignment
	if err := c.call(ctx, http.MethodPost, "/drivers/assign", models.AssignDriverRequest{OrderID: orderID}, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (c *HTTPDriverClient) ReleaseDriver(ctx context.Context, driverID int64, req models.ReleaseDriverRequest) error {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/drivers/%d/release", driverID), req, nil)
}

// HTTPOrderClient talks to the order service (payment callback path).
type HTTPOrderClient struct{ httpClient }

// NewOrderClient creates an order-service client.
func NewOrderClient(baseURL string, timeout time.Duration) *HTTPOrderClient {
	return &HTTPOrderClient{newHTTPClient(baseURL, timeout)}
}

func (c *HTTPOrderClient) PaymentCallback(ctx context.Context, orderID int64, paymentStatus string) error {
	req := models.PaymentCallbackRequest{OrderID: orderID, PaymentStatus: paymentStatus}
	return c.call(ctx, http.MethodPost, "/orders/payment-callback", req, nil)
}
