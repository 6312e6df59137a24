package internal

import (
	"encoding/json"
	"fmt"
	"net/http"

	"asset-custody-api/internal/auth"
	"asset-custody-api/internal/models"

	"go.uber.org/zap"
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch models.Kind(err) {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "FORBIDDEN":
		return http.StatusForbidden
	case "DUPLICATE_SERIAL_NUMBER", "ALREADY_ASSIGNED", "INVALID_STATE", "NO_OPEN_ASSIGNMENT":
		return http.StatusConflict
	case "INVALID_CATEGORY", "INVALID_STATUS", "INVALID_ARGUMENT":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError writes err as an auth.ErrorResponse. Internal details are
// logged, not returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, auth.ErrorResponse{Error: msg, Code: models.Kind(err)})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrInvalidArgument, err)
	}
	return nil
}
