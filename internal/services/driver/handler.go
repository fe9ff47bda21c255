package driver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
	"food-delivery/internal/web"
)

// Handler handles HTTP requests for the driver service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new driver handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/drivers/", web.WithLogging(h.logger, h.handleDriverSubpath))
	mux.HandleFunc("/health", web.WithLogging(h.logger, h.healthCheck))
	return mux
}

// handleDriverSubpath dispatches /drivers/assign, /drivers/{id},
// /drivers/{id}/release and /drivers/by-user/{user_id}.
func (h *Handler) handleDriverSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/drivers/"), "/")
	segments := strings.Split(rest, "/")

	switch {
	case rest == "assign" && r.Method == http.MethodPost:
		h.assignDriver(w, r)
		return
	case len(segments) == 2 && segments[0] == "by-user" && r.Method == http.MethodGet:
		h.getDriverByUser(w, r, segments[1])
		return
	}

	driverID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || driverID <= 0 {
		web.WriteMessage(w, http.StatusBadRequest, "invalid driver id")
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.getDriver(w, r, driverID)
	case len(segments) == 2 && segments[1] == "release" && r.Method == http.MethodPost:
		h.releaseDriver(w, r, driverID)
	default:
		web.WriteMessage(w, http.StatusNotFound, "not found")
	}
}

// assignDriver handles POST /drivers/assign.
func (h *Handler) assignDriver(w http.ResponseWriter, r *http.Request) {
	requestID := web.RequestID(r)

	var req models.AssignDriverRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	assignment, err := h.service.AssignDriver(r.Context(), &req, requestID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, assignment)
}

// releaseDriver handles POST /drivers/{id}/release.
func (h *Handler) releaseDriver(w http.ResponseWriter, r *http.Request, driverID int64) {
	requestID := web.RequestID(r)

	var req models.ReleaseDriverRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, err)
		return
	}

	if err := h.service.ReleaseDriver(r.Context(), driverID, &req, requestID); err != nil {
		h.logger.Error("driver_release_failed", "Failed to release driver", requestID, err, map[string]interface{}{
			"driver_id": driverID,
		})
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{"driver_id": driverID})
}

// getDriver handles GET /drivers/{id}.
func (h *Handler) getDriver(w http.ResponseWriter, r *http.Request, driverID int64) {
	driver, err := h.service.GetDriver(r.Context(), driverID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, driver)
}

// getDriverByUser handles GET /drivers/by-user/{user_id}.
func (h *Handler) getDriverByUser(w http.ResponseWriter, r *http.Request, rawUserID string) {
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil || userID <= 0 {
		web.WriteMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	driver, err := h.service.GetDriverByUser(r.Context(), userID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, driver)
}

// healthCheck handles GET /health.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"service":   "driver-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
