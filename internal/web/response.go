// Package web holds the envelope response format and the request-logging
// middleware shared by every service's HTTP handlers.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"food-delivery/internal/apperr"
	"food-delivery/internal/logger"
)

// Envelope is the wire shape of every response body.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{Status: "success", Data: data})
}

// WriteError writes an error envelope, mapping the error's kind to a status
// code. Internal errors are masked with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	statusCode := apperr.HTTPStatus(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		message = "internal server error"
	}
	WriteMessage(w, statusCode, message)
}

// WriteMessage writes an error envelope with an explicit status and message.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{Status: "error", Message: message})
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

// WithLogging wraps a handler with request/response logging.
func WithLogging(log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()
		r.Header.Set("X-Request-Id", requestID)

		log.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		log.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	}
}

// RequestID returns the correlation ID stamped on the request by WithLogging.
func RequestID(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
