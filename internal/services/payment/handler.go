package payment

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-delivery/internal/clients"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/web"
)

// Handler handles HTTP requests for the payment service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new payment handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/payments", web.WithLogging(h.logger, h.createPayment))
	mux.HandleFunc("/payments/", web.WithLogging(h.logger, h.handlePaymentSubpath))
	mux.HandleFunc("/health", web.WithLogging(h.logger, h.healthCheck))
	return mux
}

// createPayment handles POST /payments.
func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	requestID := web.RequestID(r)

	var req models.CreatePaymentRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), &req, requestID)
	if err != nil {
		h.logger.Error("payment_creation_failed", "Failed to create payment", requestID, err, map[string]interface{}{
			"order_id": req.OrderID,
		})
		web.WriteError(w, err)
		return
	}

	web.WriteSuccess(w, http.StatusCreated, models.CreatePaymentResponse{
		PaymentID: payment.ID,
		Reference: payment.Reference,
	})
}

// handlePaymentSubpath dispatches GET /payments/{id} and
// POST /payments/{id}/confirm.
func (h *Handler) handlePaymentSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/payments/"), "/")
	segments := strings.Split(rest, "/")

	paymentID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || paymentID <= 0 {
		web.WriteMessage(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.getPayment(w, r, paymentID)
	case len(segments) == 2 && segments[1] == "confirm" && r.Method == http.MethodPost:
		h.confirmPayment(w, r, paymentID)
	default:
		web.WriteMessage(w, http.StatusNotFound, "not found")
	}
}

// confirmPayment handles POST /payments/{id}/confirm.
func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request, paymentID int64) {
	requestID := web.RequestID(r)

	var req models.ConfirmPaymentRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	ctx := clients.WithBearer(r.Context(), r.Header.Get("Authorization"))
	payment, err := h.service.ConfirmPayment(ctx, paymentID, req.Outcome, requestID)
	if err != nil {
		h.logger.Error("payment_confirmation_failed", "Failed to confirm payment", requestID, err, map[string]interface{}{
			"payment_id": paymentID,
		})
		web.WriteError(w, err)
		return
	}

	web.WriteSuccess(w, http.StatusOK, payment)
}

// getPayment handles GET /payments/{id}.
func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request, paymentID int64) {
	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, payment)
}

// healthCheck handles GET /health.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"service":   "payment-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
