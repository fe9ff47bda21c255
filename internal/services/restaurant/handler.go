package restaurant

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/web"
)

// Handler handles HTTP requests for the restaurant service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new restaurant handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/restaurants/", web.WithLogging(h.logger, h.handleRestaurantSubpath))
	mux.HandleFunc("/health", web.WithLogging(h.logger, h.healthCheck))
	return mux
}

// handleRestaurantSubpath dispatches /restaurants/{id}/menu and
// /restaurants/{id}/stock/{check|decrease}.
func (h *Handler) handleRestaurantSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/restaurants/"), "/")
	segments := strings.Split(rest, "/")

	restaurantID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || restaurantID <= 0 {
		web.WriteMessage(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	switch {
	case len(segments) == 2 && segments[1] == "menu" && r.Method == http.MethodGet:
		h.getMenu(w, r, restaurantID)
	case len(segments) == 3 && segments[1] == "stock" && segments[2] == "check" && r.Method == http.MethodPost:
		h.checkStock(w, r, restaurantID)
	case len(segments) == 3 && segments[1] == "stock" && segments[2] == "decrease" && r.Method == http.MethodPost:
		h.decreaseStock(w, r, restaurantID)
	default:
		web.WriteMessage(w, http.StatusNotFound, "not found")
	}
}

// getMenu handles GET /restaurants/{id}/menu.
func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request, restaurantID int64) {
	menu, err := h.service.GetMenu(r.Context(), restaurantID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, menu)
}

// checkStock handles POST /restaurants/{id}/stock/check.
func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request, restaurantID int64) {
	requestID := web.RequestID(r)

	var req models.StockRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	if err := h.service.CheckStock(r.Context(), restaurantID, &req, requestID); err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// decreaseStock handles POST /restaurants/{id}/stock/decrease.
func (h *Handler) decreaseStock(w http.ResponseWriter, r *http.Request, restaurantID int64) {
	requestID := web.RequestID(r)

	var req models.StockRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	if err := h.service.DecreaseStock(r.Context(), restaurantID, &req, requestID); err != nil {
		h.logger.Error("stock_decrease_failed", "Failed to decrease stock", requestID, err, map[string]interface{}{
			"restaurant_id": restaurantID,
		})
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// healthCheck handles GET /health.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"service":   "restaurant-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
