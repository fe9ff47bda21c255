package order

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-delivery/internal/apperr"
	"food-delivery/internal/clients"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/web"
)

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", web.WithLogging(h.logger, h.handleOrders))
	mux.HandleFunc("/orders/", web.WithLogging(h.logger, h.handleOrderSubpath))
	mux.HandleFunc("/health", web.WithLogging(h.logger, h.healthCheck))
	return mux
}

// handleOrders dispatches POST /orders and GET /orders?user_id=N.
func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createOrder(w, r)
	case http.MethodGet:
		h.listUserOrders(w, r)
	default:
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleOrderSubpath dispatches everything under /orders/.
func (h *Handler) handleOrderSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/orders/"), "/")
	segments := strings.Split(rest, "/")

	switch {
	case rest == "available" && r.Method == http.MethodGet:
		h.listAvailableOrders(w, r)
		return
	case rest == "payment-callback" && r.Method == http.MethodPost:
		h.paymentCallback(w, r)
		return
	}

	orderID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || orderID <= 0 {
		web.WriteMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.getOrder(w, r, orderID)
		return
	}

	switch segments[1] {
	case "accept":
		h.driverAction(w, r, orderID, h.service.AcceptOrder)
	case "complete":
		h.driverAction(w, r, orderID, h.service.CompleteOrder)
	case "history":
		h.getHistory(w, r, orderID)
	case "saga":
		h.getSagaSteps(w, r, orderID)
	default:
		web.WriteMessage(w, http.StatusNotFound, "not found")
	}
}

// createOrder handles POST /orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	requestID := web.RequestID(r)

	var req models.CreateOrderRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	ctx := clients.WithBearer(r.Context(), r.Header.Get("Authorization"))
	response, err := h.service.CreateOrder(ctx, &req, requestID)
	if err != nil {
		h.logger.Error("order_creation_failed", "Failed to create order", requestID, err, map[string]interface{}{
			"user_id":       req.UserID,
			"restaurant_id": req.RestaurantID,
		})
		web.WriteError(w, err)
		return
	}

	web.WriteSuccess(w, http.StatusCreated, response)
}

// paymentCallback handles POST /orders/payment-callback.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	requestID := web.RequestID(r)

	var req models.PaymentCallbackRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}
	if req.OrderID <= 0 {
		web.WriteError(w, apperr.Validation("order_id is required"))
		return
	}
	if req.PaymentStatus == "" {
		web.WriteError(w, apperr.Validation("payment_status is required"))
		return
	}

	ctx := clients.WithBearer(r.Context(), r.Header.Get("Authorization"))
	if err := h.service.HandlePaymentCallback(ctx, &req, requestID); err != nil {
		h.logger.Error("payment_callback_failed", "Failed to process payment callback", requestID, err, map[string]interface{}{
			"order_id": req.OrderID,
		})
		web.WriteError(w, err)
		return
	}

	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{"order_id": req.OrderID})
}

// driverAction handles POST /orders/{id}/accept and /orders/{id}/complete.
func (h *Handler) driverAction(w http.ResponseWriter, r *http.Request, orderID int64,
	action func(ctx context.Context, orderID, driverID int64, requestID string) (*models.Order, error)) {

	if r.Method != http.MethodPost {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	requestID := web.RequestID(r)

	var req models.DriverActionRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}
	if req.DriverID <= 0 {
		web.WriteError(w, apperr.Validation("driver_id is required"))
		return
	}

	ctx := clients.WithBearer(r.Context(), r.Header.Get("Authorization"))
	order, err := action(ctx, orderID, req.DriverID, requestID)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteSuccess(w, http.StatusOK, order)
}

// getOrder handles GET /orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, orderID int64) {
	requestID := web.RequestID(r)

	ctx := clients.WithBearer(r.Context(), r.Header.Get("Authorization"))
	detail, err := h.service.GetOrderDetail(ctx, orderID, requestID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, detail)
}

// getHistory handles GET /orders/{id}/history.
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request, orderID int64) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	history, err := h.service.GetStatusHistory(r.Context(), orderID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, history)
}

// getSagaSteps handles GET /orders/{id}/saga.
func (h *Handler) getSagaSteps(w http.ResponseWriter, r *http.Request, orderID int64) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	steps, err := h.service.GetSagaSteps(r.Context(), orderID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, steps)
}

// listAvailableOrders handles GET /orders/available.
func (h *Handler) listAvailableOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAvailableOrders(r.Context())
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, orders)
}

// listUserOrders handles GET /orders?user_id=N.
func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		web.WriteError(w, apperr.Validation("user_id query parameter is required"))
		return
	}

	orders, err := h.service.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, orders)
}

// healthCheck handles GET /health.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"service":   "order-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
