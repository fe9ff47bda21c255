package user

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-delivery/internal/logger"
	"food-delivery/internal/web"
)

// Handler handles HTTP requests for the user service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new user handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", web.WithLogging(h.logger, h.handleUserSubpath))
	mux.HandleFunc("/health", web.WithLogging(h.logger, h.healthCheck))
	return mux
}

// handleUserSubpath dispatches GET /users/{id} and GET /users/{id}/addresses.
func (h *Handler) handleUserSubpath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/users/"), "/")
	segments := strings.Split(rest, "/")

	userID, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil || userID <= 0 {
		web.WriteMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	switch {
	case len(segments) == 1:
		h.getUser(w, r, userID)
	case len(segments) == 2 && segments[1] == "addresses":
		h.getAddresses(w, r, userID)
	default:
		web.WriteMessage(w, http.StatusNotFound, "not found")
	}
}

// getUser handles GET /users/{id}.
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, user)
}

// getAddresses handles GET /users/{id}/addresses.
func (h *Handler) getAddresses(w http.ResponseWriter, r *http.Request, userID int64) {
	addresses, err := h.service.GetAddresses(r.Context(), userID)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteSuccess(w, http.StatusOK, addresses)
}

// healthCheck handles GET /health.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	web.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"service":   "user-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
